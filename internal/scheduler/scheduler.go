// Package scheduler wires the C3-C9 collaborators into one long-lived
// struct and threads a RequestContext value through each call instead of
// reading process globals (spec.md §9 design note), the way the teacher's
// internal/app/executor.Executor is built once at startup and takes its
// governor/db as constructor arguments.
package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mge-net/mgesched/internal/config"
	"github.com/mge-net/mgesched/internal/device"
	"github.com/mge-net/mgesched/internal/duration"
	"github.com/mge-net/mgesched/internal/feasibility"
	"github.com/mge-net/mgesched/internal/logging"
	"github.com/mge-net/mgesched/internal/metrics"
	"github.com/mge-net/mgesched/internal/rlrepl"
	"github.com/mge-net/mgesched/internal/seas"
	"github.com/mge-net/mgesched/internal/store"
	"github.com/mge-net/mgesched/internal/workcache"
)

// Scheduler holds every long-lived collaborator the admin API and CLI need.
type Scheduler struct {
	DB      *store.DB
	Status  *store.HostStatusStore
	History *store.HistoryStore
	Cache   *workcache.Cache
	Feas    *feasibility.Oracle
	Dur     *duration.Oracle
	SEAS    *seas.Engine
	RLRepl  *rlrepl.Engine
	Metrics *metrics.Metrics

	log         *logging.Logger
	maxReplicas int
}

// New wires a Scheduler from cfg over an already-open db, registering
// metrics on reg. rngSeed seeds both the WorkCache scan offset and the
// RL-Repl exploration draw; production callers pass a value derived from
// time.Now(), tests pass a fixed seed for determinism.
func New(cfg config.Config, db *store.DB, reg prometheus.Registerer, rngSeed uint64) *Scheduler {
	status := store.NewHostStatusStore(db)
	history := store.NewHistoryStore(db)
	cache := workcache.New(cfg.WorkCacheSlots, rngSeed)
	feas := feasibility.New(history)
	dur := duration.New(history)
	m := metrics.New(reg)
	log := logging.New("scheduler", nil, cfg.Debug)

	seasCfg := seas.Config{
		ResetGap:                time.Duration(cfg.SEAS.ResetGapSeconds) * time.Second,
		ChargeEpsilonPct:        cfg.SEAS.ChargeEpsilonPct,
		DefaultDischargeRate:    cfg.SEAS.DefaultDischargeRate,
		BackoffAvoidanceEnabled: cfg.SEAS.BackoffAvoidanceEnabled,
		Now:                     func() float64 { return float64(time.Now().Unix()) },
	}
	seasEngine := seas.New(seasCfg, status, cache, feas, dur, logging.New("seas", nil, cfg.Debug), m)

	rlCfg := rlrepl.Config{
		ExplorativeProb:     cfg.RLRepl.ExplorativeProb,
		KFactor:             cfg.RLRepl.KFactor,
		KWastedEnergyImpact: cfg.RLRepl.KWastedEnergyImpact,
	}
	rlEngine := rlrepl.New(rlCfg, history, rngSeed^0x9e3779b97f4a7c15)

	return &Scheduler{
		DB:      db,
		Status:  status,
		History: history,
		Cache:   cache,
		Feas:    feas,
		Dur:     dur,
		SEAS:    seasEngine,
		RLRepl:  rlEngine,
		Metrics: m,
		log:     log,

		maxReplicas: cfg.RLRepl.MaxReplicas,
	}
}

// RequestInput is the per-RPC payload the admin API/CLI decodes off the
// wire before calling HandleRequest — everything Schedule needs that isn't
// already held by the Scheduler itself.
type RequestInput struct {
	HostID                 int64
	DeviceStatusXML        string
	DeviceStatusTime       float64
	RequestedCPUInstances  int
	BatteryChargeMinPct    float64
	InProgressOtherSecs    []float64
	CurrentJobsThisProject int
	HostProfile            feasibility.HostProfile
}

// HandleRequest decodes in.DeviceStatusXML, builds a RequestContext fresh
// (spec.md §9: no process globals), and runs one SEAS request against
// candidate workunits already loaded from the WorkCache.
func (s *Scheduler) HandleRequest(ctx context.Context, in RequestInput, workunits []seas.Workunit) (seas.Reply, error) {
	dev, err := device.DecodeXML(in.DeviceStatusXML)
	if err != nil {
		s.log.Errorf("host %d: device_status parse failed: %v", in.HostID, err)
		dev = device.New()
	}

	req := seas.RequestContext{
		HostID:                 in.HostID,
		Device:                 dev,
		DeviceStatusTime:       in.DeviceStatusTime,
		RequestedCPUInstances:  in.RequestedCPUInstances,
		BatteryChargeMinPct:    in.BatteryChargeMinPct,
		InProgressOtherSecs:    in.InProgressOtherSecs,
		CurrentJobsThisProject: in.CurrentJobsThisProject,
		HostProfile:            in.HostProfile,
	}
	return s.SEAS.Schedule(ctx, req, workunits)
}

// ChooseReplicas picks a replica count for a newly-created workunit, using
// the scheduler's configured max_replicas bound (spec.md §4.8).
func (s *Scheduler) ChooseReplicas(ctx context.Context, workunitID int64, dischargeRate float64) (reps, quorum int, explorative bool, err error) {
	reps, quorum, explorative, err = s.RLRepl.ChooseReplicas(ctx, workunitID, dischargeRate, s.maxReplicas)
	if err == nil {
		s.Metrics.ObserveReplicaChoice(reps, explorative)
	}
	return reps, quorum, explorative, err
}

// WorkcacheSlots reports current slot-state counts and mirrors them into
// the Prometheus gauge, for the /debug/workcache admin endpoint.
func (s *Scheduler) WorkcacheSlots() (empty, present, claimed int) {
	empty, present, claimed = s.Cache.Counts()
	s.Metrics.SetWorkcacheSlots(empty, present, claimed)
	return
}
