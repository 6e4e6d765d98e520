package tiercache

import "context"

// SweepResult counts entries purged by one sweep.
type SweepResult struct {
	Memory  int
	Durable int
}

// Sweep purges invalid entries from the memory and durable tiers. It also
// refreshes the effective version from the version store first, so bumps
// made by other processes take effect within one sweep period.
func (s *Service) Sweep(ctx context.Context) SweepResult {
	s.refreshVersion(ctx)

	var res SweepResult
	res.Memory = s.mem.purgeInvalid(s.Version(), s.clock.Now())
	res.Durable = s.sweepDurable(ctx)

	s.hooks.Swept(string(s.cfg.Kind), res.Memory, res.Durable)
	if res.Memory > 0 || res.Durable > 0 {
		s.log.Debug("sweep purged entries", Fields{"memory": res.Memory, "durable": res.Durable})
	}
	return res
}

// sweepDurable deletes this namespace's expired, stale or corrupt durable
// entries. Fresh entries and other namespaces are never touched.
func (s *Service) sweepDurable(ctx context.Context) int {
	if s.durable == nil {
		return 0
	}
	ks, err := s.durable.ListKeysWithPrefix(ctx, s.prefix)
	if err != nil {
		s.tierError(TierDurable, "list", s.prefix, err)
		return 0
	}

	ver := s.Version()
	purged := 0
	for _, k := range ks {
		if ctx.Err() != nil {
			break
		}
		raw, found, err := s.durable.Read(ctx, k)
		if err != nil {
			s.tierError(TierDurable, "read", k, err)
			continue
		}
		if !found {
			continue
		}
		e, err := decodeEntry(raw)
		if err == nil && IsValid(e, ver, s.clock.Now()) {
			continue
		}
		if err := s.durable.Delete(ctx, k); err != nil {
			s.tierError(TierDurable, "delete", k, err)
			continue
		}
		purged++
	}
	return purged
}

func (s *Service) sweepLoop() {
	defer s.closeWg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}
