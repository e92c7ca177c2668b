package tasks

import "time"

// DropletTarget is a deployment host drawn from the AVAILABLE_IPS pool.
type DropletTarget struct {
	IP string
}

// DropletInfo is informational metadata from the DigitalOcean API.
type DropletInfo struct {
	ID        int
	Name      string
	Size      string
	Region    string
	Status    string
	CreatedAt time.Time
}
