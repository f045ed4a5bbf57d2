package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"golang.org/x/crypto/acme/autocert"

	"filedrop/internal/config"
	"filedrop/internal/httpserver"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		addr      = flag.String("addr", "", "listen address (default "+config.DefaultAddr+")")
		root      = flag.String("root", "", "directory to share (required if -config is not set)")
		cfgPath   = flag.String("config", "", "path to config json (optional)")
		maxUpload = flag.Int64("max-upload", 0, "max bytes per upload request (default 4GiB, negative for no limit)")
		dav       = flag.Bool("webdav", false, "also serve the root over WebDAV at /dav/")
		certFile  = flag.String("tls-cert", "", "TLS certificate file")
		keyFile   = flag.String("tls-key", "", "TLS key file")
		acmeHosts = flag.String("autocert", "", "comma separated hostnames for ACME certificates")
	)
	flag.Parse()

	var cfg config.Config
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatalf("%v", err)
		}
	}
	// flags override the file
	if *root != "" {
		cfg.Root = *root
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *maxUpload != 0 {
		cfg.MaxUploadBytes = *maxUpload
	}
	if *dav {
		cfg.WebDAV = true
	}
	if *certFile != "" || *keyFile != "" {
		cfg.TLS.CertFile, cfg.TLS.KeyFile = *certFile, *keyFile
	}
	if *acmeHosts != "" {
		cfg.TLS.AutocertHosts = splitHosts(*acmeHosts)
	}
	if strings.TrimSpace(cfg.Root) == "" {
		log.Fatalf("missing -root (or provide -config)")
	}
	if err := cfg.Normalize(); err != nil {
		log.Fatalf("%v", err)
	}

	srv, err := httpserver.New(httpserver.Options{Config: cfg})
	if err != nil {
		log.Fatalf("server init: %v", err)
	}

	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
	}
	ops := map[string]gfshutdown.Operation{
		"http": hs.Shutdown,
	}

	log.Printf("filedrop serving %s", srv.Root())
	switch {
	case len(cfg.TLS.AutocertHosts) > 0:
		mgr := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Cache:      autocert.DirCache(cfg.TLS.AutocertCacheDir),
			HostPolicy: autocert.HostWhitelist(cfg.TLS.AutocertHosts...),
			Email:      cfg.TLS.AutocertEmail,
		}
		hs.Addr = ":443"
		hs.TLSConfig = mgr.TLSConfig()
		challenge := &http.Server{
			Addr:              ":80",
			Handler:           mgr.HTTPHandler(nil),
			ReadHeaderTimeout: 30 * time.Second,
		}
		ops["acme-http"] = challenge.Shutdown
		go serve("acme http-01", challenge.ListenAndServe)
		log.Printf("listening on https://%s/ (autocert)", cfg.TLS.AutocertHosts[0])
		go serve("https", func() error { return hs.ListenAndServeTLS("", "") })
	case cfg.TLS.CertFile != "":
		log.Printf("listening on https://%s/", cfg.Addr)
		go serve("https", func() error { return hs.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile) })
	default:
		log.Printf("listening on http://%s/", cfg.Addr)
		go serve("http", hs.ListenAndServe)
	}
	if cfg.WebDAV {
		log.Printf("webdav endpoint: /dav/")
	}

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout(), ops)
	code := <-wait
	log.Printf("filedrop exited with code %d", code)
	os.Exit(code)
}

func serve(name string, fn func() error) {
	if err := fn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("%s: %v", name, err)
	}
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
