package ws

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var startedAt = time.Now()

type healthResponse struct {
	Status             string  `json:"status"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
	SessionActive      bool    `json:"session_active"`
	SessionState       string  `json:"session_state,omitempty"`
	ProcessCPUPercent  float64 `json:"process_cpu_percent,omitempty"`
	ProcessRSSBytes    uint64  `json:"process_rss_bytes,omitempty"`
	HostMemUsedPercent float64 `json:"host_mem_used_percent,omitempty"`
}

// handleHealth reports liveness plus coarse process/host resource usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(startedAt).Seconds(),
	}

	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active != nil {
		resp.SessionActive = true
		resp.SessionState = active.State().String()
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if pct, err := proc.CPUPercent(); err == nil {
			resp.ProcessCPUPercent = pct
		}
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			resp.ProcessRSSBytes = info.RSS
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		resp.HostMemUsedPercent = vm.UsedPercent
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
