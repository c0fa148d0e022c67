package imapc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"imapc/internal/wire"
)

// Session is a Connection in the Authenticated or Selected state,
// exposing the full command surface. Command methods take
// exclusive use of the session for their duration; streaming results
// (FetchRows, ExpungeNumbers, NameRows) hold that exclusivity until
// drained or Close'd, since Go has no borrow checker to enforce it at
// the type level the way the protocol core's reference design assumes.
type Session struct {
	conn *Connection

	mu   sync.Mutex
	busy bool
}

func newSession(conn *Connection) *Session {
	return &Session{conn: conn}
}

func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return newError(KindIO, errors.New("imapc: another command or result stream is already in progress on this session"))
	}
	s.busy = true
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Unsolicited returns the channel callers can drain for server-initiated
// notifications.
func (s *Session) Unsolicited() *UnsolicitedChannel { return s.conn.Unsolicited() }

func (s *Session) simple(ctx context.Context, payload string) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	tag, err := s.conn.send(ctx, payload)
	if err != nil {
		return err
	}
	return s.conn.awaitDone(ctx, tag)
}

// Select opens mailbox in read-write mode.
func (s *Session) Select(ctx context.Context, mailbox string) (*MailboxSnapshot, error) {
	return s.selectOrExamine(ctx, "SELECT", mailbox, true)
}

// Examine opens mailbox read-only.
func (s *Session) Examine(ctx context.Context, mailbox string) (*MailboxSnapshot, error) {
	return s.selectOrExamine(ctx, "EXAMINE", mailbox, false)
}

func (s *Session) selectOrExamine(ctx context.Context, verb, mailbox string, readWrite bool) (*MailboxSnapshot, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	arg, err := quoteValidated(mailbox)
	if err != nil {
		return nil, err
	}
	tag, err := s.conn.send(ctx, verb+" "+arg)
	if err != nil {
		return nil, err
	}
	snap := &MailboxSnapshot{ReadWrite: readWrite}
	for {
		v, done, err := s.conn.pullUntagged(ctx, tag)
		if err != nil {
			return nil, err
		}
		if done {
			if serr := statusToError(v.Resp); serr != nil {
				return nil, serr
			}
			applySelectCode(snap, v.Resp.Code)
			return snap, nil
		}
		r := v.Resp
		switch {
		case r.Type == wire.TypeFlags:
			snap.Flags = r.Flags
		case r.Type == wire.TypeExists:
			snap.Exists = r.Seq
		case r.Type == wire.TypeRecent:
			snap.Recent = r.Seq
		case r.Type == wire.TypeStatus && r.Code != nil:
			applySelectCode(snap, r.Code)
		default:
			s.conn.routeUnsolicited(ctx, v)
		}
	}
}

func applySelectCode(snap *MailboxSnapshot, code *wire.ResponseCode) {
	if code == nil {
		return
	}
	switch code.Name {
	case "PERMANENTFLAGS":
		snap.PermanentFlags = code.Flags
	case "UNSEEN":
		n := code.Number
		snap.Unseen = &n
	case "UIDVALIDITY":
		n := code.Number
		snap.UIDValidity = &n
	case "UIDNEXT":
		n := code.Number
		snap.UIDNext = &n
	case "READ-ONLY":
		snap.ReadWrite = false
	case "READ-WRITE":
		snap.ReadWrite = true
	}
}

// Status requests a mailbox snapshot without selecting it.
func (s *Session) Status(ctx context.Context, mailbox string, items []string) (*MailboxSnapshot, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	arg, err := quoteValidated(mailbox)
	if err != nil {
		return nil, err
	}
	tag, err := s.conn.send(ctx, "STATUS "+arg+" ("+strings.Join(items, " ")+")")
	if err != nil {
		return nil, err
	}
	var snap *MailboxSnapshot
	for {
		v, done, err := s.conn.pullUntagged(ctx, tag)
		if err != nil {
			return nil, err
		}
		if done {
			if serr := statusToError(v.Resp); serr != nil {
				return nil, serr
			}
			if snap == nil {
				return nil, newError(KindParse, errors.New("STATUS completed without a STATUS data response"))
			}
			return snap, nil
		}
		if v.Resp.Type == wire.TypeStatusData && strings.EqualFold(v.Resp.Mailbox, mailbox) {
			snap = &MailboxSnapshot{StatusAttrs: v.Resp.StatusAttrs}
		} else {
			s.conn.routeUnsolicited(ctx, v)
		}
	}
}

// Fetch requests the given attributes for set, returning a borrowed,
// single-pass stream of rows.
func (s *Session) Fetch(ctx context.Context, set, query string) (*FetchRows, error) {
	return s.fetch(ctx, "FETCH", set, query)
}

// UIDFetch is Fetch addressed by UID instead of sequence number.
func (s *Session) UIDFetch(ctx context.Context, set, query string) (*FetchRows, error) {
	return s.fetch(ctx, "UID FETCH", set, query)
}

// Store applies a flag-update item to set, returning the (usually
// FLAGS-only) FETCH rows the server echoes back unless .SILENT was used.
func (s *Session) Store(ctx context.Context, set, item string) (*FetchRows, error) {
	return s.fetch(ctx, "STORE", set, item)
}

// UIDStore is Store addressed by UID.
func (s *Session) UIDStore(ctx context.Context, set, item string) (*FetchRows, error) {
	return s.fetch(ctx, "UID STORE", set, item)
}

func (s *Session) fetch(ctx context.Context, verb, set, query string) (*FetchRows, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	tag, err := s.conn.send(ctx, verb+" "+set+" "+query)
	if err != nil {
		s.release()
		return nil, err
	}
	return &FetchRows{sess: s, tag: tag}, nil
}

// Expunge permanently removes messages marked \Deleted in the selected
// mailbox, streaming the sequence numbers removed.
func (s *Session) Expunge(ctx context.Context) (*ExpungeNumbers, error) {
	return s.expunge(ctx, "EXPUNGE", "")
}

// UIDExpunge expunges only the messages in set (RFC 4315 UIDPLUS).
func (s *Session) UIDExpunge(ctx context.Context, set string) (*ExpungeNumbers, error) {
	return s.expunge(ctx, "UID EXPUNGE", " "+set)
}

func (s *Session) expunge(ctx context.Context, verb, argSuffix string) (*ExpungeNumbers, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	tag, err := s.conn.send(ctx, verb+argSuffix)
	if err != nil {
		s.release()
		return nil, err
	}
	return &ExpungeNumbers{sess: s, tag: tag}, nil
}

// Search returns the set of sequence numbers matching query.
func (s *Session) Search(ctx context.Context, query string) (map[uint32]struct{}, error) {
	return s.search(ctx, "SEARCH", query)
}

// UIDSearch is Search returning UIDs instead of sequence numbers.
func (s *Session) UIDSearch(ctx context.Context, query string) (map[uint32]struct{}, error) {
	return s.search(ctx, "UID SEARCH", query)
}

func (s *Session) search(ctx context.Context, verb, query string) (map[uint32]struct{}, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	tag, err := s.conn.send(ctx, verb+" "+query)
	if err != nil {
		return nil, err
	}
	ids := make(map[uint32]struct{})
	for {
		v, done, err := s.conn.pullUntagged(ctx, tag)
		if err != nil {
			return nil, err
		}
		if done {
			if serr := statusToError(v.Resp); serr != nil {
				return nil, serr
			}
			return ids, nil
		}
		if v.Resp.Type == wire.TypeSearch {
			for _, id := range v.Resp.SearchIDs {
				ids[id] = struct{}{}
			}
		} else {
			s.conn.routeUnsolicited(ctx, v)
		}
	}
}

// List returns the mailboxes matching reference/pattern.
func (s *Session) List(ctx context.Context, reference, pattern string) (*NameRows, error) {
	return s.list(ctx, "LIST", reference, pattern, false)
}

// Lsub is List restricted to subscribed mailboxes.
func (s *Session) Lsub(ctx context.Context, reference, pattern string) (*NameRows, error) {
	return s.list(ctx, "LSUB", reference, pattern, true)
}

func (s *Session) list(ctx context.Context, verb, reference, pattern string, lsub bool) (*NameRows, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	refArg, err := quoteValidated(reference)
	if err != nil {
		s.release()
		return nil, err
	}
	patArg, err := quoteValidated(pattern)
	if err != nil {
		s.release()
		return nil, err
	}
	tag, err := s.conn.send(ctx, verb+" "+refArg+" "+patArg)
	if err != nil {
		s.release()
		return nil, err
	}
	return &NameRows{sess: s, tag: tag, wantLsub: lsub}, nil
}

// Copy copies set into mailbox.
func (s *Session) Copy(ctx context.Context, set, mailbox string) error {
	return s.copyOrMove(ctx, "COPY", set, mailbox)
}

// UIDCopy is Copy addressed by UID.
func (s *Session) UIDCopy(ctx context.Context, set, mailbox string) error {
	return s.copyOrMove(ctx, "UID COPY", set, mailbox)
}

func (s *Session) copyOrMove(ctx context.Context, verb, set, mailbox string) error {
	arg, err := quoteValidated(mailbox)
	if err != nil {
		return err
	}
	return s.simple(ctx, verb+" "+set+" "+arg)
}

// Move moves set into mailbox, emitting MOVE (RFC 6851) when the server
// advertised it and falling back to COPY + STORE \Deleted + EXPUNGE
// otherwise.
func (s *Session) Move(ctx context.Context, set, mailbox string) error {
	return s.move(ctx, set, mailbox, false)
}

// UIDMove is Move addressed by UID.
func (s *Session) UIDMove(ctx context.Context, set, mailbox string) error {
	return s.move(ctx, set, mailbox, true)
}

func (s *Session) move(ctx context.Context, set, mailbox string, uid bool) error {
	caps, err := s.Capabilities(ctx)
	if err != nil {
		return err
	}
	if caps.HasStr("MOVE") {
		verb := "MOVE"
		if uid {
			verb = "UID MOVE"
		}
		return s.copyOrMove(ctx, verb, set, mailbox)
	}

	copyVerb, storeVerb, expungeVerb := "COPY", "STORE", "EXPUNGE"
	expungeSuffix := ""
	if uid {
		copyVerb, storeVerb, expungeVerb = "UID COPY", "UID STORE", "UID EXPUNGE"
		expungeSuffix = " " + set
	}
	if err := s.copyOrMove(ctx, copyVerb, set, mailbox); err != nil {
		return err
	}
	rows, err := s.fetch(ctx, storeVerb, set, `+FLAGS.SILENT (\Deleted)`)
	if err != nil {
		return err
	}
	for rows.Next(ctx) {
	}
	if err := rows.Close(ctx); err != nil {
		return err
	}
	expunged, err := s.expunge(ctx, expungeVerb, expungeSuffix)
	if err != nil {
		return err
	}
	for expunged.Next(ctx) {
	}
	return expunged.Close(ctx)
}

// Create, Delete, Subscribe, Unsubscribe, Noop, Check and CloseMailbox
// are the mailbox/connection maintenance verbs that carry no result
// beyond success or failure.
func (s *Session) Create(ctx context.Context, mailbox string) error {
	return s.mailboxVerb(ctx, "CREATE", mailbox)
}

func (s *Session) Delete(ctx context.Context, mailbox string) error {
	return s.mailboxVerb(ctx, "DELETE", mailbox)
}

func (s *Session) Subscribe(ctx context.Context, mailbox string) error {
	return s.mailboxVerb(ctx, "SUBSCRIBE", mailbox)
}

func (s *Session) Unsubscribe(ctx context.Context, mailbox string) error {
	return s.mailboxVerb(ctx, "UNSUBSCRIBE", mailbox)
}

func (s *Session) mailboxVerb(ctx context.Context, verb, mailbox string) error {
	arg, err := quoteValidated(mailbox)
	if err != nil {
		return err
	}
	return s.simple(ctx, verb+" "+arg)
}

// Rename renames mailbox from to to.
func (s *Session) Rename(ctx context.Context, from, to string) error {
	fa, err := quoteValidated(from)
	if err != nil {
		return err
	}
	ta, err := quoteValidated(to)
	if err != nil {
		return err
	}
	return s.simple(ctx, "RENAME "+fa+" "+ta)
}

func (s *Session) Noop(ctx context.Context) error { return s.simple(ctx, "NOOP") }
func (s *Session) Check(ctx context.Context) error { return s.simple(ctx, "CHECK") }

// CloseMailbox issues IMAP CLOSE, silently expunging \Deleted messages
// and returning the session to the Authenticated state.
func (s *Session) CloseMailbox(ctx context.Context) error { return s.simple(ctx, "CLOSE") }

// Logout issues LOGOUT. The server's BYE greeting, which always precedes
// the tagged OK, is routed to the unsolicited channel.
func (s *Session) Logout(ctx context.Context) error { return s.simple(ctx, "LOGOUT") }

// Capabilities requests the server's current capability set.
func (s *Session) Capabilities(ctx context.Context) (*Capabilities, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	tag, err := s.conn.send(ctx, "CAPABILITY")
	if err != nil {
		return nil, err
	}
	caps := newCapabilities()
	for {
		v, done, err := s.conn.pullUntagged(ctx, tag)
		if err != nil {
			return nil, err
		}
		if done {
			if serr := statusToError(v.Resp); serr != nil {
				return nil, serr
			}
			return caps, nil
		}
		if v.Resp.Type == wire.TypeCapability {
			for _, c := range v.Resp.Caps {
				caps.add(c)
			}
		} else {
			s.conn.routeUnsolicited(ctx, v)
		}
	}
}

// Append uploads msg as a new message in mailbox via an IMAP literal.
func (s *Session) Append(ctx context.Context, mailbox string, msg []byte) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	arg, err := quoteValidated(mailbox)
	if err != nil {
		return err
	}
	tag, err := s.conn.send(ctx, fmt.Sprintf("APPEND %s {%d}", arg, len(msg)))
	if err != nil {
		return err
	}
	for {
		v, done, err := s.conn.pullUntagged(ctx, tag)
		if err != nil {
			return err
		}
		if done {
			serr := statusToError(v.Resp)
			return &Error{Kind: KindAppend, Code: codeName(v.Resp.Code), Info: v.Resp.Info, Err: serr}
		}
		if v.Resp.Kind == wire.KindContinuation {
			break
		}
		s.conn.routeUnsolicited(ctx, v)
	}
	if err := s.conn.stream.WriteLiteral(ctx, msg); err != nil {
		return newError(KindIO, err)
	}
	return s.conn.awaitDone(ctx, tag)
}

// ID exchanges client/server identification (RFC 2971).
func (s *Session) ID(ctx context.Context, params IDParams) (IDParams, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	tag, err := s.conn.send(ctx, "ID "+params.encode())
	if err != nil {
		return nil, err
	}
	var result IDParams
	for {
		v, done, err := s.conn.pullUntagged(ctx, tag)
		if err != nil {
			return nil, err
		}
		if done {
			if serr := statusToError(v.Resp); serr != nil {
				return nil, serr
			}
			return result, nil
		}
		if v.Resp.Type == wire.TypeID {
			result = IDParams(v.Resp.IDParams)
		} else {
			s.conn.routeUnsolicited(ctx, v)
		}
	}
}

// GetMetadata fetches entries under mailbox (RFC 5464). Pass "" for
// mailbox to query server-level annotations.
func (s *Session) GetMetadata(ctx context.Context, mailbox string, entries []string) ([]MetadataEntry, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	mbArg, err := quoteValidated(mailbox)
	if err != nil {
		return nil, err
	}
	quoted := make([]string, len(entries))
	for i, e := range entries {
		qe, err := quoteValidated(e)
		if err != nil {
			return nil, err
		}
		quoted[i] = qe
	}
	tag, err := s.conn.send(ctx, "GETMETADATA "+mbArg+" ("+strings.Join(quoted, " ")+")")
	if err != nil {
		return nil, err
	}
	var result []MetadataEntry
	for {
		v, done, err := s.conn.pullUntagged(ctx, tag)
		if err != nil {
			return nil, err
		}
		if done {
			if serr := statusToError(v.Resp); serr != nil {
				return nil, serr
			}
			return result, nil
		}
		if v.Resp.Type == wire.TypeMetadata && strings.EqualFold(v.Resp.Mailbox, mailbox) {
			for k, val := range v.Resp.Metadata {
				result = append(result, MetadataEntry{Mailbox: v.Resp.Mailbox, Entry: k, Value: val})
			}
		} else {
			s.conn.routeUnsolicited(ctx, v)
		}
	}
}

// SetMetadata sets or clears (value == nil) metadata entries on mailbox.
func (s *Session) SetMetadata(ctx context.Context, mailbox string, entries map[string]*string) error {
	mbArg, err := quoteValidated(mailbox)
	if err != nil {
		return err
	}
	var parts []string
	for k, v := range entries {
		ka, err := quoteValidated(k)
		if err != nil {
			return err
		}
		va := "NIL"
		if v != nil {
			q, err := quoteValidated(*v)
			if err != nil {
				return err
			}
			va = q
		}
		parts = append(parts, ka+" "+va)
	}
	return s.simple(ctx, "SETMETADATA "+mbArg+" ("+strings.Join(parts, " ")+")")
}

// GetQuota fetches the resource usage/limit pairs for a quota root.
func (s *Session) GetQuota(ctx context.Context, root string) (*Quota, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	arg, err := quoteValidated(root)
	if err != nil {
		return nil, err
	}
	tag, err := s.conn.send(ctx, "GETQUOTA "+arg)
	if err != nil {
		return nil, err
	}
	var result *Quota
	for {
		v, done, err := s.conn.pullUntagged(ctx, tag)
		if err != nil {
			return nil, err
		}
		if done {
			if serr := statusToError(v.Resp); serr != nil {
				return nil, serr
			}
			if result == nil {
				return nil, newError(KindParse, errors.New("GETQUOTA completed without a QUOTA response"))
			}
			return result, nil
		}
		if v.Resp.Type == wire.TypeQuota {
			result = &Quota{Root: v.Resp.QuotaRoot, Resources: v.Resp.Quotas}
		} else {
			s.conn.routeUnsolicited(ctx, v)
		}
	}
}

// GetQuotaRoot fetches the quota roots that apply to mailbox, along with
// each root's resource usage.
func (s *Session) GetQuotaRoot(ctx context.Context, mailbox string) ([]QuotaRoot, []Quota, error) {
	if err := s.acquire(); err != nil {
		return nil, nil, err
	}
	defer s.release()
	arg, err := quoteValidated(mailbox)
	if err != nil {
		return nil, nil, err
	}
	tag, err := s.conn.send(ctx, "GETQUOTAROOT "+arg)
	if err != nil {
		return nil, nil, err
	}
	var roots []QuotaRoot
	var quotas []Quota
	for {
		v, done, err := s.conn.pullUntagged(ctx, tag)
		if err != nil {
			return nil, nil, err
		}
		if done {
			if serr := statusToError(v.Resp); serr != nil {
				return nil, nil, serr
			}
			if len(roots) == 0 && len(quotas) == 0 {
				return nil, nil, newError(KindParse, errors.New("GETQUOTAROOT completed without a QUOTAROOT/QUOTA response"))
			}
			return roots, quotas, nil
		}
		switch v.Resp.Type {
		case wire.TypeQuotaRoot:
			roots = append(roots, QuotaRoot{Mailbox: v.Resp.Mailbox, Roots: v.Resp.QuotaRoots})
		case wire.TypeQuota:
			quotas = append(quotas, Quota{Root: v.Resp.QuotaRoot, Resources: v.Resp.Quotas})
		default:
			s.conn.routeUnsolicited(ctx, v)
		}
	}
}

// Idle enters the IDLE sub-protocol, loaning the session to the
// returned handle until Done is called.
func (s *Session) Idle(ctx context.Context) (*IdleHandle, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	tag, err := s.conn.send(ctx, "IDLE")
	if err != nil {
		s.release()
		return nil, err
	}
	for {
		v, done, err := s.conn.pullUntagged(ctx, tag)
		if err != nil {
			s.release()
			return nil, err
		}
		if done {
			s.release()
			serr := statusToError(v.Resp)
			if serr == nil {
				serr = newError(KindIO, errors.New("server completed IDLE without a continuation"))
			}
			return nil, serr
		}
		if v.Resp.Kind == wire.KindContinuation {
			return &IdleHandle{sess: s, tag: tag}, nil
		}
		s.conn.routeUnsolicited(ctx, v)
	}
}
