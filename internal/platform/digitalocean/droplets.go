package digitalocean

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/digitalocean/godo"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/errors"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

// DropletLookup resolves droplet metadata by public IPv4 address.
type DropletLookup interface {
	FindByIP(ctx context.Context, ip string) (*types.DropletInfo, error)
}

type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

type lookup struct {
	log *logger.Logger
	do  *godo.Client
}

func New(log *logger.Logger, cfg Config) (DropletLookup, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("digitalocean: token required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	var opts []godo.ClientOpt
	if cfg.BaseURL != "" {
		opts = append(opts, godo.SetBaseURL(cfg.BaseURL))
	}
	hc := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: bearerTransport{token: strings.TrimSpace(cfg.Token), next: http.DefaultTransport},
	}
	client, err := godo.New(hc, opts...)
	if err != nil {
		return nil, fmt.Errorf("digitalocean client: %w", err)
	}
	return &lookup{
		log: log.With("client", "DigitalOceanClient"),
		do:  client,
	}, nil
}

type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(r)
}

// FindByIP pages through the account's droplets until one has ip as its public IPv4.
func (l *lookup) FindByIP(ctx context.Context, ip string) (*types.DropletInfo, error) {
	opt := &godo.ListOptions{Page: 1, PerPage: 200}
	for {
		droplets, resp, err := l.do.Droplets.List(ctx, opt)
		if err != nil {
			return nil, fmt.Errorf("list droplets: %w", err)
		}
		for i := range droplets {
			d := droplets[i]
			public, err := d.PublicIPv4()
			if err != nil || public != ip {
				continue
			}
			info := &types.DropletInfo{
				ID:        d.ID,
				Name:      d.Name,
				Size:      d.SizeSlug,
				Status:    d.Status,
			}
			if ts, err := time.Parse(time.RFC3339, d.Created); err == nil {
				info.CreatedAt = ts
			}
			if d.Region != nil {
				info.Region = d.Region.Slug
			}
			return info, nil
		}
		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			break
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			break
		}
		opt.Page = page + 1
	}
	l.log.Debug("no droplet with ip", "ip", ip)
	return nil, fmt.Errorf("droplet %s: %w", ip, errors.ErrNotFound)
}
