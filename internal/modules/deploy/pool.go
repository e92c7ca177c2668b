package deploy

import (
	"fmt"
	"strings"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
)

// Pool is the fixed set of droplet IPs from AVAILABLE_IPS.
type Pool struct {
	ips []string
}

func NewPool(ips []string) *Pool {
	seen := map[string]bool{}
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip == "" || seen[ip] {
			continue
		}
		seen[ip] = true
		out = append(out, ip)
	}
	return &Pool{ips: out}
}

func (p *Pool) Len() int { return len(p.ips) }

func (p *Pool) Contains(ip string) bool {
	for _, v := range p.ips {
		if v == ip {
			return true
		}
	}
	return false
}

// Pick returns the first IP in pool order that is not in use.
func (p *Pool) Pick(inUse map[string]bool) (types.DropletTarget, error) {
	if len(p.ips) == 0 {
		return types.DropletTarget{}, fmt.Errorf("droplet pool is empty: set AVAILABLE_IPS")
	}
	for _, ip := range p.ips {
		if !inUse[ip] {
			return types.DropletTarget{IP: ip}, nil
		}
	}
	return types.DropletTarget{}, fmt.Errorf("all %d droplets in AVAILABLE_IPS are in use", len(p.ips))
}
