package tls

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewSource_Disabled(t *testing.T) {
	src, err := NewSource(context.Background(), TLSConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, src)

	assert.Nil(t, src.ClientConfig())
	assert.NoError(t, src.Close())
	src.WatchCertificates(context.Background(), time.Millisecond)
}

func TestHTTPClient_WithoutTLS(t *testing.T) {
	c := HTTPClient(nil, 3*time.Second)

	assert.Equal(t, 3*time.Second, c.Timeout)
	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotSame(t, http.DefaultTransport, transport)
	// the cloned default transport may carry ALPN settings; only the
	// absence of client identity and custom verification matters
	if cfg := transport.TLSClientConfig; cfg != nil {
		assert.Empty(t, cfg.Certificates)
		assert.Nil(t, cfg.GetClientCertificate)
		assert.Nil(t, cfg.VerifyPeerCertificate)
		assert.False(t, cfg.InsecureSkipVerify)
	}
}

func TestHTTPClient_SplitsTrustDomains(t *testing.T) {
	src := &Source{logger: zap.NewNop()}

	mtls := HTTPClient(src, time.Second)
	mtlsTransport, ok := mtls.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, mtlsTransport.TLSClientConfig)
	assert.NotNil(t, mtlsTransport.TLSClientConfig.GetClientCertificate)
	assert.NotNil(t, mtlsTransport.TLSClientConfig.VerifyPeerCertificate)

	public := PublicHTTPClient(time.Second)
	publicTransport, ok := public.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotSame(t, mtlsTransport, publicTransport)
	if cfg := publicTransport.TLSClientConfig; cfg != nil {
		assert.Nil(t, cfg.GetClientCertificate)
		assert.Nil(t, cfg.VerifyPeerCertificate)
		assert.Nil(t, cfg.RootCAs)
		assert.False(t, cfg.InsecureSkipVerify)
	}
}
