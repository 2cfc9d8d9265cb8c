package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service reports liveness of the process and its dependencies.
type Service struct {
	DB          Pinger
	AgentMode   string
	Products    func() int
	Sessions    func() int
	PingTimeout time.Duration
}

// Status is the health payload.
type Status struct {
	OK        bool   `json:"ok"`
	Database  string `json:"database"`
	AgentMode string `json:"agentMode,omitempty"`
	Products  int    `json:"products"`
	Sessions  int    `json:"sessions"`
}

// Check pings the database when one is configured. A service without a
// database reports "memory" and stays healthy.
func (s *Service) Check(ctx context.Context) Status {
	st := Status{OK: true, Database: "memory", AgentMode: s.AgentMode}
	if s.Products != nil {
		st.Products = s.Products()
	}
	if s.Sessions != nil {
		st.Sessions = s.Sessions()
	}
	if s.DB == nil {
		return st
	}
	timeout := s.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		st.OK = false
		st.Database = "unreachable"
		return st
	}
	st.Database = "ok"
	return st
}
