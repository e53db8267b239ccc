package monitor

import "time"

type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Snapshot   bool      `json:"snapshot"`
	Snapshots  int       `json:"snapshot_entries"`
	LastCheck  time.Time `json:"last_check"`
}
