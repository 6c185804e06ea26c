package provider

import (
	"net/http"
	"net/url"
	"sync"
	"time"
)

// proxyRing mantém um pool de proxies em round-robin
// O índice avança a cada uso, independente do resultado da requisição
type proxyRing struct {
	mu      sync.Mutex
	urls    []string
	clients []*http.Client
	idx     int
}

// newProxyRing monta o pool a partir da lista de URLs; entradas inválidas são descartadas
func newProxyRing(proxies []string, timeout time.Duration) *proxyRing {
	r := &proxyRing{}
	for _, p := range proxies {
		u, err := url.Parse(p)
		if err != nil || u.Host == "" {
			continue
		}
		r.urls = append(r.urls, p)
		r.clients = append(r.clients, &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(u)},
		})
	}
	return r
}

func (r *proxyRing) empty() bool {
	return r == nil || len(r.clients) == 0
}

// next devolve o próximo proxy da rotação, voltando ao primeiro após o último
func (r *proxyRing) next() (*http.Client, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.clients[r.idx]
	u := r.urls[r.idx]
	r.idx = (r.idx + 1) % len(r.clients)
	return c, u
}
