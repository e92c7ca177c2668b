package provision

import (
	"context"
	"fmt"
	"strings"
)

var permissionAliases = map[string]string{
	"read":     "pull",
	"pull":     "pull",
	"triage":   "triage",
	"write":    "push",
	"push":     "push",
	"maintain": "maintain",
	"admin":    "admin",
}

// RepoAccess returns the collaborator permission user has on owner/repo ("none" if absent).
func (p *Provisioner) RepoAccess(ctx context.Context, owner, repo, user string) (string, error) {
	perm, err := p.repos.CollaboratorPermission(ctx, owner, repo, user)
	if err != nil {
		return "", fmt.Errorf("read access of %s on %s/%s: %w", user, owner, repo, err)
	}
	return perm, nil
}

// SetRepoAccess grants permission to user, or removes the collaborator for "none".
func (p *Provisioner) SetRepoAccess(ctx context.Context, owner, repo, user, permission string) error {
	perm := strings.ToLower(strings.TrimSpace(permission))
	if perm == "" || perm == "none" {
		if err := p.repos.RemoveCollaborator(ctx, owner, repo, user); err != nil {
			return fmt.Errorf("remove %s from %s/%s: %w", user, owner, repo, err)
		}
		p.log.Info("collaborator removed", "repo", owner+"/"+repo, "user", user)
		return nil
	}
	apiPerm, ok := permissionAliases[perm]
	if !ok {
		return fmt.Errorf("unknown permission %q", permission)
	}
	if err := p.repos.AddCollaborator(ctx, owner, repo, user, apiPerm); err != nil {
		return fmt.Errorf("grant %s on %s/%s to %s: %w", apiPerm, owner, repo, user, err)
	}
	p.log.Info("collaborator access set", "repo", owner+"/"+repo, "user", user, "permission", apiPerm)
	return nil
}
