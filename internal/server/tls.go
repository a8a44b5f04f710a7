package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"atscore/internal/config"
	"atscore/internal/errors"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounceDelay = time.Second

// CertMetrics receives certificate reload telemetry
type CertMetrics interface {
	RecordCertReload(ctx context.Context, success bool)
	RecordCertExpiry(ctx context.Context, notAfter time.Time)
}

// CertStats is a snapshot of reloader activity
type CertStats struct {
	Watching       bool      `json:"watching"`
	ReloadCount    int64     `json:"reloadCount"`
	FailureCount   int64     `json:"failureCount"`
	LastReloadTime time.Time `json:"lastReloadTime"`
	LastError      string    `json:"lastError,omitempty"`
}

// CertReloader serves a certificate pair from disk and swaps it in place
// when either file changes. A failed reload keeps the previous pair.
type CertReloader struct {
	certFile string
	keyFile  string
	debounce time.Duration
	metrics  CertMetrics
	logger   *errors.Logger

	mu    sync.RWMutex
	cert  *tls.Certificate
	stats CertStats

	watcher  *fsnotify.Watcher
	timerMu  sync.Mutex
	timer    *time.Timer
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewCertReloader loads the initial pair. metrics may be nil.
func NewCertReloader(certFile, keyFile string, debounce time.Duration, metrics CertMetrics, logger *errors.Logger) (*CertReloader, error) {
	if logger == nil {
		logger = errors.Discard()
	}
	if debounce <= 0 {
		debounce = defaultDebounceDelay
	}

	r := &CertReloader{
		certFile: certFile,
		keyFile:  keyFile,
		debounce: debounce,
		metrics:  metrics,
		logger:   logger.With("component", "cert_reloader"),
		done:     make(chan struct{}),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload reads both files and swaps the served certificate
func (r *CertReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err == nil && cert.Leaf == nil {
		cert.Leaf, err = x509.ParseCertificate(cert.Certificate[0])
	}

	r.mu.Lock()
	r.stats.ReloadCount++
	r.stats.LastReloadTime = time.Now()
	if err != nil {
		r.stats.FailureCount++
		r.stats.LastError = err.Error()
	} else {
		r.cert = &cert
		r.stats.LastError = ""
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordCertReload(context.Background(), err == nil)
	}
	if err != nil {
		wrapped := errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to load certificate pair", err).
			WithContext("cert_file", r.certFile)
		r.logger.LogError(wrapped, "Certificate reload failed")
		return wrapped
	}

	if r.metrics != nil {
		r.metrics.RecordCertExpiry(context.Background(), cert.Leaf.NotAfter)
	}
	r.logger.Info("Certificate loaded",
		"subject", cert.Leaf.Subject.CommonName,
		"not_after", cert.Leaf.NotAfter)
	return nil
}

// GetCertificate satisfies tls.Config.GetCertificate
func (r *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cert == nil {
		return nil, fmt.Errorf("no certificate loaded")
	}
	return r.cert, nil
}

// NotAfter is the expiry of the served certificate
func (r *CertReloader) NotAfter() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cert == nil || r.cert.Leaf == nil {
		return time.Time{}
	}
	return r.cert.Leaf.NotAfter
}

// Stats returns a snapshot of reload activity
func (r *CertReloader) Stats() CertStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Watch starts reloading on file changes until Stop is called. The parent
// directories are watched so atomic renames are seen too.
func (r *CertReloader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs := map[string]bool{filepath.Dir(r.certFile): true, filepath.Dir(r.keyFile): true}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	r.watcher = watcher
	r.mu.Lock()
	r.stats.Watching = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.watchLoop()

	r.logger.Info("Certificate file watcher started",
		"files", []string{r.certFile, r.keyFile},
		"debounce_delay", r.debounce)
	return nil
}

func (r *CertReloader) watchLoop() {
	defer r.wg.Done()
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if r.isWatched(event) {
				r.scheduleReload()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.LogError(err, "File watcher error")
		case <-r.done:
			return
		}
	}
}

// isWatched reports whether event touches the cert or key file
func (r *CertReloader) isWatched(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == filepath.Clean(r.certFile) || name == filepath.Clean(r.keyFile)
}

// scheduleReload collapses a burst of events into one reload
func (r *CertReloader) scheduleReload() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		select {
		case <-r.done:
			return
		default:
		}
		_ = r.Reload()
	})
}

// Stop ends watching. It is safe to call without Watch and more than once.
func (r *CertReloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.done)

		r.timerMu.Lock()
		if r.timer != nil {
			r.timer.Stop()
		}
		r.timerMu.Unlock()

		if r.watcher != nil {
			err = r.watcher.Close()
		}
		r.wg.Wait()

		r.mu.Lock()
		r.stats.Watching = false
		r.mu.Unlock()
		r.logger.Info("Certificate file watcher stopped")
	})
	return err
}

// buildTLSConfig returns the server TLS configuration backed by reloader
func buildTLSConfig(cfg config.TLSConfig, reloader *CertReloader) *tls.Config {
	tlsConfig := &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: reloader.GetCertificate,
	}
	if cfg.MinVersion == "1.3" {
		tlsConfig.MinVersion = tls.VersionTLS13
	}
	return tlsConfig
}
