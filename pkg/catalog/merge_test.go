package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/appshelf/appshelf/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDuplicates_CollapsesSharedPackageID(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	firefox := createProfile(t, svc,
		&models.Profile{Name: "Firefox", PackageID: pointerutil.String("firefox")},
		"/srv/soft/Firefox/118/setup.exe",
		"/srv/soft/Firefox/119/setup.exe",
	)
	esr := createProfile(t, svc,
		&models.Profile{
			Name:        "Firefox ESR",
			PackageID:   pointerutil.String("Firefox"),
			Description: pointerutil.String("Extended support release"),
			IconURL:     pointerutil.String("/images/packages/firefox/icon.png"),
			Screenshots: []string{"a.png", "b.png"},
		},
		"/srv/soft/Firefox ESR/esr.exe",
	)
	createProfile(t, svc, &models.Profile{Name: "Chrome", PackageID: pointerutil.String("googlechrome")}, "/srv/soft/Chrome/c.exe")

	result, err := MergeDuplicates(ctx, svc.NewSession())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, MergeGroup{
		PackageID:       "firefox",
		SurvivorID:      firefox.ID,
		RemovedIDs:      []int{esr.ID},
		MovedInstallers: 1,
	}, result.Groups[0])

	assert.Equal(t, 2, countRows(t, db, (*models.Profile)(nil)))
	assert.Equal(t, 4, countRows(t, db, (*models.Installer)(nil)))

	survivor, err := svc.RetrieveProfile(ctx, firefox.ID)
	require.NoError(t, err)
	assert.Len(t, survivor.Installers, 3)
	assert.Equal(t, "Extended support release", *survivor.Description)
	assert.Equal(t, "/images/packages/firefox/icon.png", *survivor.IconURL)
	assert.Equal(t, []string{"a.png", "b.png"}, survivor.Screenshots)
}

func TestMergeDuplicates_Idempotent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	createProfile(t, svc, &models.Profile{Name: "A", PackageID: pointerutil.String("git")}, "/srv/a.exe")
	createProfile(t, svc, &models.Profile{Name: "B", PackageID: pointerutil.String("GIT")}, "/srv/b.exe")
	createProfile(t, svc, &models.Profile{Name: "C", PackageID: pointerutil.String(" git ")}, "/srv/c.exe")

	first, err := MergeDuplicates(ctx, svc.NewSession())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Removed)

	second, err := MergeDuplicates(ctx, svc.NewSession())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Removed)
	assert.Empty(t, second.Groups)

	assert.Equal(t, 1, countRows(t, db, (*models.Profile)(nil)))
	assert.Equal(t, 3, countRows(t, db, (*models.Installer)(nil)))
}

func TestMergeDuplicates_SurvivorSelection(t *testing.T) {
	t.Parallel()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("more recently updated wins a tie on installers", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewService(db)
		createProfile(t, svc, &models.Profile{Name: "Old", PackageID: pointerutil.String("vlc"), UpdatedAt: older}, "/srv/old.exe")
		recent := createProfile(t, svc, &models.Profile{Name: "New", PackageID: pointerutil.String("vlc"), UpdatedAt: newer}, "/srv/new.exe")

		result, err := MergeDuplicates(context.Background(), svc.NewSession())
		require.NoError(t, err)
		require.Len(t, result.Groups, 1)
		assert.Equal(t, recent.ID, result.Groups[0].SurvivorID)
	})

	t.Run("lowest id wins a full tie", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewService(db)
		first := createProfile(t, svc, &models.Profile{Name: "First", PackageID: pointerutil.String("vlc"), UpdatedAt: older}, "/srv/1.exe")
		createProfile(t, svc, &models.Profile{Name: "Second", PackageID: pointerutil.String("vlc"), UpdatedAt: older}, "/srv/2.exe")

		result, err := MergeDuplicates(context.Background(), svc.NewSession())
		require.NoError(t, err)
		require.Len(t, result.Groups, 1)
		assert.Equal(t, first.ID, result.Groups[0].SurvivorID)
	})

	t.Run("most installers wins over recency", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewService(db)
		big := createProfile(t, svc, &models.Profile{Name: "Big", PackageID: pointerutil.String("vlc"), UpdatedAt: older}, "/srv/b1.exe", "/srv/b2.exe")
		createProfile(t, svc, &models.Profile{Name: "Small", PackageID: pointerutil.String("vlc"), UpdatedAt: newer}, "/srv/s.exe")

		result, err := MergeDuplicates(context.Background(), svc.NewSession())
		require.NoError(t, err)
		require.Len(t, result.Groups, 1)
		assert.Equal(t, big.ID, result.Groups[0].SurvivorID)
	})
}

func TestMergeDuplicates_KeepsSurvivorMetadata(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	keep := createProfile(t, svc, &models.Profile{
		Name:        "Keep",
		PackageID:   pointerutil.String("obs"),
		Description: pointerutil.String("mine"),
		Screenshots: []string{"x.png"},
	}, "/srv/k1.exe", "/srv/k2.exe")
	createProfile(t, svc, &models.Profile{
		Name:        "Drop",
		PackageID:   pointerutil.String("obs"),
		Description: pointerutil.String("theirs"),
		Screenshots: []string{"x.png", "y.png"},
	}, "/srv/d.exe")

	_, err := MergeDuplicates(ctx, svc.NewSession())
	require.NoError(t, err)

	got, err := svc.RetrieveProfile(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", *got.Description)
	assert.Equal(t, []string{"x.png", "y.png"}, got.Screenshots)
}

func TestMergeDuplicates_NothingToMerge(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db)

	createProfile(t, svc, &models.Profile{Name: "NoID"}, "/srv/n.exe")
	createProfile(t, svc, &models.Profile{Name: "NoID"}, "/srv/n2.exe")

	result, err := MergeDuplicates(context.Background(), svc.NewSession())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Removed)
	assert.Equal(t, 2, countRows(t, db, (*models.Profile)(nil)))
}
