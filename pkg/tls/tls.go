package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
	"go.uber.org/zap"
)

type TLSConfig struct {
	Enabled    bool
	SocketPath string
}

// Source holds the SPIRE X.509 source backing outbound mTLS. A nil *Source
// means TLS is disabled and every method is a no-op.
type Source struct {
	x509   *workloadapi.X509Source
	logger *zap.Logger
}

func NewSource(ctx context.Context, cfg TLSConfig, logger *zap.Logger) (*Source, error) {
	if !cfg.Enabled {
		logger.Info("TLS is disabled")
		return nil, nil
	}

	// SVIDs come from the SPIRE agent's Workload API
	x509, err := workloadapi.NewX509Source(
		ctx,
		workloadapi.WithClientOptions(
			workloadapi.WithAddr(cfg.SocketPath),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create X509Source: %w", err)
	}

	logger.Info("SPIRE TLS configuration loaded",
		zap.String("socket_path", cfg.SocketPath),
		zap.Bool("mtls_enabled", true))

	return &Source{x509: x509, logger: logger}, nil
}

func (s *Source) ClientConfig() *tls.Config {
	if s == nil {
		return nil
	}
	tlsConfig := tlsconfig.MTLSClientConfig(s.x509, s.x509, tlsconfig.AuthorizeAny())
	tlsConfig.MinVersion = tls.VersionTLS12
	return tlsConfig
}

// HTTPClient builds the client used for collaborator calls. timeout 0 keeps
// the transport defaults.
func HTTPClient(s *Source, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg := s.ClientConfig(); cfg != nil {
		transport.TLSClientConfig = cfg
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// PublicHTTPClient builds a client for endpoints outside the SPIFFE trust
// domain, such as the identity provider. It verifies peers against the
// system roots and never presents an SVID.
func PublicHTTPClient(timeout time.Duration) *http.Client {
	return HTTPClient(nil, timeout)
}

// WatchCertificates logs SVID status until ctx is done. SPIRE rotates the
// certificates itself.
func (s *Source) WatchCertificates(ctx context.Context, interval time.Duration) {
	if s == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		svid, err := s.x509.GetX509SVID()
		if err != nil {
			s.logger.Error("Failed to get X509 SVID", zap.Error(err))
			continue
		}

		s.logger.Info("Certificate status",
			zap.String("spiffe_id", svid.ID.String()),
			zap.Time("expiry", svid.Certificates[0].NotAfter),
			zap.Duration("ttl", time.Until(svid.Certificates[0].NotAfter)))
	}
}

func (s *Source) Close() error {
	if s == nil {
		return nil
	}
	return s.x509.Close()
}
