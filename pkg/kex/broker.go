package kex

import "time"

// Broker is the §3 data-model Broker: identity (host, port) plus an
// optional live socket. Two brokers are equal iff their (host, port)
// match; NodeID is metadata-derived and not part of identity (a seed
// broker has no node id until metadata resolves it).
type Broker struct {
	NodeID int32 // unknownNodeID for seeds; set from metadata only for brokers opened by reconcile
	Addr   BrokerAddr

	sock Socket
}

const unknownNodeID int32 = -1

func newSeedBroker(addr BrokerAddr) *Broker {
	return &Broker{NodeID: unknownNodeID, Addr: addr}
}

// connected reports whether the broker currently has a live socket.
func (b *Broker) connected(nc NetworkClient) bool {
	return b.sock != nil && nc.Connected(b.sock)
}

// saslConfig is the slice of cfg a freshly opened connection needs to
// authenticate, threaded separately from cfg so the reconciliation path
// (which only has a Protocol/NetworkClient/Logger in hand, not a full cfg)
// can open new brokers the same way the initial seed connect does.
type saslConfig struct {
	mechanism   SASLMechanism
	user        string
	pass        string
	syncTimeout time.Duration
}

func saslConfigFromCfg(c cfg) saslConfig {
	return saslConfig{mechanism: c.sasl, user: c.saslUser, pass: c.saslPass, syncTimeout: c.syncTimeout}
}

// open dials the broker and, if a mechanism is configured, performs the
// SASLHandshake/SASLAuthenticate exchange over it, mirroring the teacher's
// brokerCxn.connect -> init -> sasl sequence but collapsed into one
// blocking call since this module never multiplexes requests over a
// connection.
func open(addr BrokerAddr, nc NetworkClient, proto Protocol, sc saslConfig, logger Logger) (*Broker, error) {
	sock, err := nc.CreateSocket(addr.Host, addr.Port)
	if err != nil {
		logger.Log(LogLevelWarn, "unable to open connection to broker", "addr", addr, "err", err)
		return &Broker{NodeID: unknownNodeID, Addr: addr}, err
	}
	logger.Log(LogLevelDebug, "connection opened to broker", "addr", addr)

	b := &Broker{NodeID: unknownNodeID, Addr: addr, sock: sock}

	if sc.mechanism != SASLNone {
		if err := authenticate(b, nc, proto, sc, logger); err != nil {
			logger.Log(LogLevelError, "sasl authentication failed", "addr", addr, "err", err)
			nc.CloseSocket(sock)
			b.sock = nil
			return b, err
		}
	}
	return b, nil
}

// authenticate performs the mechanism-appropriate handshake over a freshly
// opened socket via Protocol/kmsg, mirroring the teacher's brokerCxn.sasl
// (SASLHandshakeRequest negotiation) followed by brokerCxn.doSasl
// (SASLAuthenticateRequest carrying the mechanism's bytes), rather than
// writing raw bytes over the socket.
func authenticate(b *Broker, nc NetworkClient, proto Protocol, sc saslConfig, logger Logger) error {
	name := saslMechanismName(sc.mechanism)

	handshakeReq := proto.BuildSASLHandshakeRequest(0, name)
	raw, err := nc.SendSyncRequest(b.sock, handshakeReq, sc.syncTimeout)
	if err != nil || raw == nil {
		return ErrSASLHandshake
	}
	handshakeResp, err := proto.ParseSASLHandshakeResponse(raw)
	if err != nil {
		return err
	}
	if err := errForCode(handshakeResp.ErrorCode); err != nil {
		logger.Log(LogLevelError, "sasl handshake rejected", "mechanism", name, "err", err)
		return err
	}

	switch sc.mechanism {
	case SASLPlain:
		return saslAuthenticateRoundTrip(b, nc, proto, sc.syncTimeout, saslPlainAuthBytes(sc.user, sc.pass))
	case SASLScramSHA256, SASLScramSHA512:
		return scramAuthenticate(b, nc, proto, sc)
	default:
		return nil
	}
}

// saslAuthenticateRoundTrip sends one SASLAuthenticateRequest and checks the
// reply's error code, shared by PLAIN and each step of the SCRAM exchange.
func saslAuthenticateRoundTrip(b *Broker, nc NetworkClient, proto Protocol, timeout time.Duration, authBytes []byte) error {
	raw, err := nc.SendSyncRequest(b.sock, proto.BuildSASLAuthenticateRequest(1, authBytes), timeout)
	if err != nil || raw == nil {
		return ErrSASLHandshake
	}
	resp, err := proto.ParseSASLAuthenticateResponse(raw)
	if err != nil {
		return err
	}
	return errForCode(resp.ErrorCode)
}

// scramAuthenticate performs the client-first/server-first/client-final
// round trip (RFC 5802 §3) over SASLAuthenticateRequest.
func scramAuthenticate(b *Broker, nc NetworkClient, proto Protocol, sc saslConfig) error {
	nonce, err := scramNonce()
	if err != nil {
		return err
	}
	clientFirst, clientFirstBare := scramClientFirstMessage(sc.user, nonce)

	raw, err := nc.SendSyncRequest(b.sock, proto.BuildSASLAuthenticateRequest(1, []byte(clientFirst)), sc.syncTimeout)
	if err != nil || raw == nil {
		return ErrSASLHandshake
	}
	resp, err := proto.ParseSASLAuthenticateResponse(raw)
	if err != nil {
		return err
	}
	if err := errForCode(resp.ErrorCode); err != nil {
		return err
	}

	serverNonce, salt, iterations, err := parseScramServerFirst(resp.SASLAuthBytes)
	if err != nil {
		return err
	}

	clientKey := scramClientKey(sc.mechanism, []byte(sc.pass), salt, iterations)
	clientFinal := scramClientFinalMessage(sc.mechanism, clientKey, clientFirstBare, string(resp.SASLAuthBytes), serverNonce)

	raw, err = nc.SendSyncRequest(b.sock, proto.BuildSASLAuthenticateRequest(2, []byte(clientFinal)), sc.syncTimeout)
	if err != nil || raw == nil {
		return ErrSASLHandshake
	}
	finalResp, err := proto.ParseSASLAuthenticateResponse(raw)
	if err != nil {
		return err
	}
	return errForCode(finalResp.ErrorCode)
}

func (b *Broker) close(nc NetworkClient) {
	if b.sock != nil {
		nc.CloseSocket(b.sock)
		b.sock = nil
	}
}
