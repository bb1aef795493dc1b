package kex

import "time"

// BrokerRegistry is component §4.A: the set of known brokers with live
// sockets. Order is insertion order, preserved only so first() has a
// meaningful "head" to fall back to; it is not otherwise semantically
// significant.
type BrokerRegistry struct {
	brokers []*Broker
}

func newBrokerRegistry(seeds []BrokerAddr, nc NetworkClient, proto Protocol, c cfg) *BrokerRegistry {
	sc := saslConfigFromCfg(c)
	reg := &BrokerRegistry{}
	for _, addr := range seeds {
		b, err := open(addr, nc, proto, sc, c.logger)
		if err != nil {
			c.logger.Log(LogLevelWarn, "seed broker connect failed, keeping disconnected placeholder", "addr", addr, "err", err)
		}
		reg.brokers = append(reg.brokers, b)
	}
	return reg
}

func (r *BrokerRegistry) find(addr BrokerAddr) (*Broker, bool) {
	for _, b := range r.brokers {
		if b.Addr == addr {
			return b, true
		}
	}
	return nil, false
}

// findByNode resolves a node id to a Broker by cross-referencing the given
// metadata snapshot for the node's (host, port), then looking that address
// up in the registry (§4.B).
func (r *BrokerRegistry) findByNode(nodeID int32, snap MetadataSnapshot) (*Broker, bool) {
	for _, bm := range snap.Brokers {
		if bm.NodeID == nodeID {
			return r.find(bm.Addr())
		}
	}
	return nil, false
}

// findAddr resolves a Broker directly by (host, port), used by the
// coordinator cache (§4.C).
func (r *BrokerRegistry) findAddr(addr BrokerAddr) (*Broker, bool) {
	return r.find(addr)
}

func (r *BrokerRegistry) first() (*Broker, bool) {
	if len(r.brokers) == 0 {
		return nil, false
	}
	return r.brokers[0], true
}

func (r *BrokerRegistry) closeAll(nc NetworkClient) {
	for _, b := range r.brokers {
		b.close(nc)
	}
	r.brokers = nil
}

// reconcile is §4.A's reconciliation policy:
//  1. partition into keep (still-live, still-referenced) and drop
//  2. if keep is empty, abort the removal (retain drop as-is)
//  3. otherwise close and discard drop
//  4. open and prepend any brand-new broker not already kept
func (r *BrokerRegistry) reconcile(newBrokers []BrokerMetadata, nc NetworkClient, proto Protocol, sc saslConfig, logger Logger) {
	if len(newBrokers) == 0 {
		return
	}

	wanted := make(map[BrokerAddr]bool, len(newBrokers))
	for _, nb := range newBrokers {
		wanted[nb.Addr()] = true
	}

	var keep, drop []*Broker
	for _, b := range r.brokers {
		if wanted[b.Addr] && b.connected(nc) {
			keep = append(keep, b)
		} else {
			drop = append(drop, b)
		}
	}

	if len(keep) == 0 {
		logger.Log(LogLevelWarn, "reconciliation would drop every broker, aborting removal")
		return
	}

	for _, b := range drop {
		b.close(nc)
	}
	r.brokers = keep

	kept := make(map[BrokerAddr]bool, len(keep))
	for _, b := range keep {
		kept[b.Addr] = true
	}
	for _, nb := range newBrokers {
		addr := nb.Addr()
		if kept[addr] {
			continue
		}
		b, err := open(addr, nc, proto, sc, logger)
		if err != nil {
			logger.Log(LogLevelWarn, "unable to open connection to new broker", "addr", addr, "err", err)
		}
		b.NodeID = nb.NodeID
		r.brokers = append([]*Broker{b}, r.brokers...)
		kept[addr] = true
	}
}

// firstBrokerResponse is the §9 "reusable primitive" named helper: iterate
// the registry in order, skip disconnected brokers, issue a synchronous
// request, and short-circuit on the first non-empty reply.
func firstBrokerResponse(reg *BrokerRegistry, nc NetworkClient, payload []byte, timeout time.Duration) ([]byte, error) {
	for _, b := range reg.brokers {
		if !b.connected(nc) {
			continue
		}
		raw, err := nc.SendSyncRequest(b.sock, payload, timeout)
		if err != nil {
			continue
		}
		if len(raw) > 0 {
			return raw, nil
		}
	}
	return nil, ErrNoMetadataAvailable
}
