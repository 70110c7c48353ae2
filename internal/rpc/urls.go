package rpc

// Jurisdiction selects which regional endpoint set an account's RPC and
// streaming traffic must use. Betfair issues separate hostnames per
// jurisdiction for the certificate-login and interactive-login hosts;
// the keep-alive, logout and REST hosts are shared globally except for
// Italy and Spain, and the streaming host is the same for every
// jurisdiction.
type Jurisdiction int

const (
	JurisdictionGlobal Jurisdiction = iota
	JurisdictionItaly
	JurisdictionSpain
	JurisdictionRomania
	JurisdictionSweden
)

// Endpoints is the set of hostnames an authenticated session needs.
type Endpoints struct {
	CertLogin string
	KeepAlive string
	Logout    string
	RestBase  string
	Streaming string
}

// EndpointsFor returns the endpoint set for a jurisdiction.
func EndpointsFor(j Jurisdiction) Endpoints {
	switch j {
	case JurisdictionItaly:
		return Endpoints{
			CertLogin: "https://identitysso-cert.betfair.it/api/certlogin",
			KeepAlive: "https://identitysso.betfair.it/api/keepAlive",
			Logout:    "https://identitysso.betfair.it/api/logout",
			RestBase:  "https://api.betfair.it/exchange",
			Streaming: "stream-api.betfair.com:443",
		}
	case JurisdictionSpain:
		return Endpoints{
			CertLogin: "https://identitysso-cert.betfair.es/api/certlogin",
			KeepAlive: "https://identitysso.betfair.es/api/keepAlive",
			Logout:    "https://identitysso.betfair.es/api/logout",
			RestBase:  "https://api.betfair.es/exchange",
			Streaming: "stream-api.betfair.com:443",
		}
	case JurisdictionRomania:
		return Endpoints{
			CertLogin: "https://identitysso-cert.betfair.ro/api/certlogin",
			KeepAlive: "https://identitysso.betfair.com/api/keepAlive",
			Logout:    "https://identitysso.betfair.com/api/logout",
			RestBase:  "https://api.betfair.com/exchange",
			Streaming: "stream-api.betfair.com:443",
		}
	case JurisdictionSweden:
		return Endpoints{
			CertLogin: "https://identitysso-cert.betfair.se/api/certlogin",
			KeepAlive: "https://identitysso.betfair.com/api/keepAlive",
			Logout:    "https://identitysso.betfair.com/api/logout",
			RestBase:  "https://api.betfair.com/exchange",
			Streaming: "stream-api.betfair.com:443",
		}
	default:
		return Endpoints{
			CertLogin: "https://identitysso-cert.betfair.com/api/certlogin",
			KeepAlive: "https://identitysso.betfair.com/api/keepAlive",
			Logout:    "https://identitysso.betfair.com/api/logout",
			RestBase:  "https://api.betfair.com/exchange",
			Streaming: "stream-api.betfair.com:443",
		}
	}
}
