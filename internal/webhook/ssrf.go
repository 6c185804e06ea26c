package webhook

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// Erros de rejeição de URL; nunca geram retry nem requisição de rede
var (
	ErrBadScheme   = errors.New("webhook url must be http or https")
	ErrNoHost      = errors.New("webhook url has no hostname")
	ErrLocalHost   = errors.New("webhook url resolves to localhost")
	ErrPrivateAddr = errors.New("webhook url targets a private address range")
)

// blockedHosts são os alvos de loopback recusados diretamente
var blockedHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
	"::1":       {},
}

// SafeURL valida a URL de um webhook antes de qualquer chamada de rede (anti-SSRF).
// A checagem de faixa privada é por prefixo de string, não um parser CIDR
// completo: cobre 10/8, 192.168/16 e 172.16/12, mas não 169.254/16 nem
// IPv6 unique-local.
func SafeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrBadScheme
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ErrNoHost
	}

	if _, ok := blockedHosts[host]; ok {
		return ErrLocalHost
	}

	if strings.HasPrefix(host, "10.") || strings.HasPrefix(host, "192.168.") {
		return ErrPrivateAddr
	}
	// 172.16.0.0/12 -> segundo octeto de 16 a 31
	for i := 16; i <= 31; i++ {
		if strings.HasPrefix(host, "172."+strconv.Itoa(i)+".") {
			return ErrPrivateAddr
		}
	}

	return nil
}
