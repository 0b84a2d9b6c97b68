package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/appshelf/appshelf/pkg/models"
)

// MergeGroup describes one set of profiles that shared a package identifier.
type MergeGroup struct {
	PackageID       string `json:"package_id"`
	SurvivorID      int    `json:"survivor_id"`
	RemovedIDs      []int  `json:"removed_ids"`
	MovedInstallers int    `json:"moved_installers"`
}

type MergeResult struct {
	Removed int          `json:"removed"`
	Groups  []MergeGroup `json:"groups"`
}

// MergeDuplicates collapses profiles whose package identifiers match
// case-insensitively into a single survivor per identifier. Installers of the
// removed profiles are moved to the survivor, so the number of installers is
// unchanged. All changes are committed together. Running it again on a merged
// catalog removes nothing.
func MergeDuplicates(ctx context.Context, sess *Session) (*MergeResult, error) {
	profiles, err := sess.ListProfiles(ctx, ListProfilesOptions{
		WithPackageID:  true,
		WithInstallers: true,
	})
	if err != nil {
		return nil, err
	}

	groups := map[string][]*models.Profile{}
	for _, p := range profiles {
		key := strings.ToLower(strings.TrimSpace(*p.PackageID))
		groups[key] = append(groups[key], p)
	}

	keys := make([]string, 0, len(groups))
	for k, members := range groups {
		if len(members) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := &MergeResult{Groups: []MergeGroup{}}
	for _, key := range keys {
		members := groups[key]
		survivor := pickSurvivor(members)
		group := MergeGroup{PackageID: key, SurvivorID: survivor.ID, RemovedIDs: []int{}}

		for _, dup := range members {
			if dup == survivor {
				continue
			}
			for _, inst := range dup.Installers {
				inst.ProfileID = survivor.ID
				sess.UpdateInstaller(inst, "profile_id")
				survivor.Installers = append(survivor.Installers, inst)
				group.MovedInstallers++
			}
			dup.Installers = nil

			if isBlank(survivor.Description) && !isBlank(dup.Description) {
				survivor.Description = dup.Description
			}
			if isBlank(survivor.IconURL) && !isBlank(dup.IconURL) {
				survivor.IconURL = dup.IconURL
			}
			survivor.Screenshots = unionScreenshots(survivor.Screenshots, dup.Screenshots)

			sess.RemoveProfile(dup)
			group.RemovedIDs = append(group.RemovedIDs, dup.ID)
		}

		sess.UpdateProfile(survivor, "description", "icon_url", "screenshots")
		result.Removed += len(group.RemovedIDs)
		result.Groups = append(result.Groups, group)
	}

	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// pickSurvivor prefers the profile with the most installers, then the most
// recently updated one, then the lowest id.
func pickSurvivor(members []*models.Profile) *models.Profile {
	best := members[0]
	for _, p := range members[1:] {
		switch {
		case len(p.Installers) != len(best.Installers):
			if len(p.Installers) > len(best.Installers) {
				best = p
			}
		case !p.UpdatedAt.Equal(best.UpdatedAt):
			if p.UpdatedAt.After(best.UpdatedAt) {
				best = p
			}
		case p.ID < best.ID:
			best = p
		}
	}
	return best
}

func unionScreenshots(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := map[string]struct{}{}
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
