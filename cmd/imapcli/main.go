// Command imapcli is a small demonstration client: it logs in, selects a
// mailbox, fetches the most recent message's envelope, and then idles
// until the mailbox changes or the config's idle_timeout elapses.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"os"

	"imapc"
	"imapc/internal/config"
)

func main() {
	cfgPath := flag.String("config", "", "path to imapc.yaml (default: built-in search list)")
	mailbox := flag.String("mailbox", "INBOX", "mailbox to select")
	flag.Parse()

	var candidates []string
	if *cfgPath != "" {
		candidates = []string{*cfgPath}
	}
	cfg, err := config.Load(candidates...)
	if err != nil {
		log.Fatalf("imapcli: loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	logger := log.New(os.Stderr, "imapc: ", log.LstdFlags)

	client, greeting, err := dial(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("imapcli: connecting: %v", err)
	}
	log.Printf("connected, greeting: preauth=%v %q", greeting.PreAuth, greeting.Info)

	var sess *imapc.Session
	if greeting.PreAuth {
		sess = client.Session()
	} else {
		sess, err = authenticate(ctx, client, cfg)
		if err != nil {
			log.Fatalf("imapcli: authenticating: %v", err)
		}
	}

	snap, err := sess.Select(ctx, *mailbox)
	if err != nil {
		log.Fatalf("imapcli: selecting %s: %v", *mailbox, err)
	}
	log.Printf("%s: %d messages, %d recent, uidvalidity=%v", *mailbox, snap.Exists, snap.Recent, derefU32(snap.UIDValidity))

	if snap.Exists > 0 {
		rows, err := sess.Fetch(ctx, fmt.Sprintf("%d", snap.Exists), "(ENVELOPE)")
		if err != nil {
			log.Fatalf("imapcli: fetch: %v", err)
		}
		for rows.Next(ctx) {
			row := rows.Row()
			if env, ok := row.Envelope(); ok {
				log.Printf("message %d envelope: %s", row.Message, env)
			}
			row.Release()
		}
		if err := rows.Close(ctx); err != nil {
			log.Fatalf("imapcli: fetch stream: %v", err)
		}
	}

	idleCtx, idleCancel := context.WithTimeout(context.Background(), cfg.IdleTimeout)
	defer idleCancel()
	handle, err := sess.Idle(idleCtx)
	if err != nil {
		log.Fatalf("imapcli: idle: %v", err)
	}
	log.Printf("idling for up to %s, watching for mailbox changes", cfg.IdleTimeout)
	resp, err := handle.Wait(idleCtx)
	if err != nil {
		log.Printf("idle ended: %v", err)
	} else {
		log.Printf("unsolicited: kind=%d mailbox=%q n=%d", resp.Kind, resp.Mailbox, resp.N)
	}
	if err := handle.Done(context.Background()); err != nil {
		log.Printf("imapcli: ending idle: %v", err)
	}

	if err := sess.Logout(context.Background()); err != nil {
		log.Printf("imapcli: logout: %v", err)
	}
}

// dial connects directly; NewUnauthClient itself takes any wire.Stream,
// so a caller routing through a SOCKS5 proxy or other tunnel only needs
// to hand it an already-connected net.Conn instead of calling this helper.
func dial(ctx context.Context, cfg *config.Config, logger *log.Logger) (*imapc.UnauthClient, *imapc.Greeting, error) {
	addr := cfg.Addr()

	var opts []imapc.Option
	if cfg.BufferBlockSize > 0 {
		opts = append(opts, imapc.WithBufferBlockSize(cfg.BufferBlockSize))
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	if cfg.TLSMode == "implicit" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: cfg.Host})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return imapc.NewUnauthClient(ctx, tlsConn, logger, opts...)
	}

	client, greeting, err := imapc.NewUnauthClient(ctx, conn, logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	if cfg.TLSMode == "starttls" {
		if err := client.StartTLS(ctx, &tls.Config{ServerName: cfg.Host}); err != nil {
			return nil, nil, err
		}
	}
	return client, greeting, nil
}

func authenticate(ctx context.Context, client *imapc.UnauthClient, cfg *config.Config) (*imapc.Session, error) {
	if cfg.SASLMechanism != "" {
		return client.Authenticate(ctx, cfg.SASLMechanism, imapc.AuthenticatorFunc(func(challenge []byte) ([]byte, error) {
			// PLAIN-over-AUTHENTICATE is the only mechanism this demo
			// drives directly; anything else needs a caller-supplied
			// imapc.Authenticator (e.g. internal/xoauth2.New for Gmail).
			return []byte("\x00" + cfg.Username + "\x00" + cfg.Password), nil
		}))
	}
	return client.Login(ctx, cfg.Username, cfg.Password)
}

func derefU32(p *uint32) uint32 {
	if p == nil {
		return 0
	}
	return *p
}
