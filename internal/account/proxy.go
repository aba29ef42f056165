package account

// ProxyType selects how an account reaches the network
type ProxyType int

const (
	ProxyUseGlobal ProxyType = iota
	ProxyNone
	ProxyHTTP
	ProxySOCKS4
	ProxySOCKS5
	ProxyUseEnvVar
)

var proxyTypeNames = map[ProxyType]string{
	ProxyUseGlobal: "global",
	ProxyNone:      "none",
	ProxyHTTP:      "http",
	ProxySOCKS4:    "socks4",
	ProxySOCKS5:    "socks5",
	ProxyUseEnvVar: "envvar",
}

func (t ProxyType) String() string {
	if s, ok := proxyTypeNames[t]; ok {
		return s
	}
	return "global"
}

// ParseProxyType parses the name written by ProxyType.String
func ParseProxyType(s string) (ProxyType, bool) {
	for t, name := range proxyTypeNames {
		if name == s {
			return t, true
		}
	}
	return ProxyUseGlobal, false
}

// ProxyInfo is the proxy configuration of one account
type ProxyInfo struct {
	Type     ProxyType
	Host     string
	Port     int
	Username string
	Password string
}

// IsDefault reports whether p carries nothing beyond "use the global proxy"
func (p *ProxyInfo) IsDefault() bool {
	return p == nil || *p == ProxyInfo{}
}
