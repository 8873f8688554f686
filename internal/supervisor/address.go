package supervisor

// TransportArgs mirrors the server-launch flags that decide transport
// selection: Unix domain socket when none of them are set, HTTP
// otherwise (including an explicit WebUI request), grounded on the
// teacher-adjacent launcher's documented transport-selection rule.
type TransportArgs struct {
	WebUI        bool
	ExplicitHTTP bool
	Host         string
	Port         int
}

// DetermineTransport applies the deterministic rule: UDS only when webui,
// explicit-http, host, and port are all unset/zero; HTTP in every other
// case.
func DetermineTransport(a TransportArgs) Transport {
	if a.WebUI || a.ExplicitHTTP || a.Host != "" || a.Port != 0 {
		return TransportHTTP
	}
	return TransportUnixSocket
}
