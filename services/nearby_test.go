package services

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"stormneighbor-server/models"

	"gorm.io/gorm"
)

func ptr(f float64) *float64 { return &f }

func createPost(t *testing.T, db *gorm.DB, post models.Post) models.Post {
	t.Helper()
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create post %q: %v", post.Title, err)
	}
	return post
}

func titles(rows []NearbyPost) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Title
	}
	return out
}

func TestNearbyPostsExcludesExpiredAndRemoved(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "Ada", "L", "ada@example.com")

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	createPost(t, db, models.Post{AuthorID: author.ID, Title: "expired", Priority: models.PriorityNormal, ExpiresAt: &past})
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "removed", Priority: models.PriorityNormal, IsRemoved: true})
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "open-ended", Priority: models.PriorityNormal})
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "still-valid", Priority: models.PriorityNormal, ExpiresAt: &future})

	rows, err := NearbyPosts(db, NearbyPostsParams{Lat: 36.1, Lng: -95.9}, nil)
	if err != nil {
		t.Fatalf("nearby posts: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d posts %v, want 2", len(rows), titles(rows))
	}
	for _, row := range rows {
		if row.Title == "expired" || row.Title == "removed" {
			t.Fatalf("ineligible post %q in feed", row.Title)
		}
	}
}

func TestNearbyPostsOrdering(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "Ada", "L", "ada@example.com")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Emergency beats priority, priority beats recency, recency beats id.
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "old-normal", Priority: models.PriorityNormal,
		Model: gorm.Model{CreatedAt: base}})
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "new-normal", Priority: models.PriorityNormal,
		Model: gorm.Model{CreatedAt: base.Add(time.Hour)}})
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "urgent", Priority: models.PriorityUrgent,
		Model: gorm.Model{CreatedAt: base}})
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "low-emergency", Priority: models.PriorityLow, IsEmergency: true,
		Model: gorm.Model{CreatedAt: base}})
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "high", Priority: models.PriorityHigh,
		Model: gorm.Model{CreatedAt: base}})

	rows, err := NearbyPosts(db, NearbyPostsParams{Lat: 36.1, Lng: -95.9}, nil)
	if err != nil {
		t.Fatalf("nearby posts: %v", err)
	}

	want := []string{"low-emergency", "urgent", "high", "new-normal", "old-normal"}
	got := titles(rows)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %v, want %v", i, got, want)
		}
	}
}

func TestNearbyPostsIDTiebreak(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "Ada", "L", "ada@example.com")

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := createPost(t, db, models.Post{AuthorID: author.ID, Title: "first", Priority: models.PriorityNormal,
		Model: gorm.Model{CreatedAt: at}})
	second := createPost(t, db, models.Post{AuthorID: author.ID, Title: "second", Priority: models.PriorityNormal,
		Model: gorm.Model{CreatedAt: at}})

	rows, err := NearbyPosts(db, NearbyPostsParams{Lat: 36.1, Lng: -95.9}, nil)
	if err != nil {
		t.Fatalf("nearby posts: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != second.ID || rows[1].ID != first.ID {
		t.Fatalf("identical timestamps must order by id desc, got %v", titles(rows))
	}
}

func TestNearbyPostsCityScope(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "Ada", "L", "ada@example.com")

	createPost(t, db, models.Post{AuthorID: author.ID, Title: "tulsa", Priority: models.PriorityNormal,
		LocationCity: "Tulsa", LocationState: "OK"})
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "austin", Priority: models.PriorityNormal,
		LocationCity: "Austin", LocationState: "TX"})
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "nowhere", Priority: models.PriorityNormal})

	scoped, err := NearbyPosts(db, NearbyPostsParams{Lat: 36.1, Lng: -95.9, City: "Tulsa", State: "OK", CityOnly: true}, nil)
	if err != nil {
		t.Fatalf("scoped query: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Title != "tulsa" {
		t.Fatalf("city scope got %v, want [tulsa]", titles(scoped))
	}

	// Without CityOnly the whole community is eligible.
	global, err := NearbyPosts(db, NearbyPostsParams{Lat: 36.1, Lng: -95.9, City: "Tulsa", State: "OK"}, nil)
	if err != nil {
		t.Fatalf("global query: %v", err)
	}
	if len(global) != 3 {
		t.Fatalf("global feed got %v, want all 3", titles(global))
	}
}

func TestNearbyPostsDistance(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "Ada", "L", "ada@example.com")

	createPost(t, db, models.Post{AuthorID: author.ID, Title: "no-point", Priority: models.PriorityNormal})
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "one-degree", Priority: models.PriorityNormal,
		Lat: ptr(37.1), Lng: ptr(-95.9)})

	rows, err := NearbyPosts(db, NearbyPostsParams{Lat: 36.1, Lng: -95.9}, nil)
	if err != nil {
		t.Fatalf("nearby posts: %v", err)
	}

	byTitle := map[string]float64{}
	for _, row := range rows {
		byTitle[row.Title] = row.DistanceMiles
	}
	if byTitle["no-point"] != 0 {
		t.Fatalf("post without a point reported distance %v, want 0", byTitle["no-point"])
	}
	if math.Abs(byTitle["one-degree"]-MilesPerDegree) > 1e-6 {
		t.Fatalf("one degree of latitude = %v miles, want %v", byTitle["one-degree"], MilesPerDegree)
	}
}

func TestNearbyPostsJoinsAuthor(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "Ada", "Lovelace", "ada@example.com")
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "hello", Priority: models.PriorityNormal})

	rows, err := NearbyPosts(db, NearbyPostsParams{Lat: 36.1, Lng: -95.9}, nil)
	if err != nil {
		t.Fatalf("nearby posts: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].AuthorFirstName != "Ada" || rows[0].AuthorLastName != "Lovelace" {
		t.Fatalf("author join broken: %q %q", rows[0].AuthorFirstName, rows[0].AuthorLastName)
	}
}

func TestNearbyPostsPagination(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "Ada", "L", "ada@example.com")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		createPost(t, db, models.Post{AuthorID: author.ID, Title: "p", Priority: models.PriorityNormal,
			Model: gorm.Model{CreatedAt: base.Add(time.Duration(i) * time.Minute)}})
	}

	all, err := NearbyPosts(db, NearbyPostsParams{Lat: 36.1, Lng: -95.9}, nil)
	if err != nil {
		t.Fatalf("full feed: %v", err)
	}
	page, err := NearbyPosts(db, NearbyPostsParams{Lat: 36.1, Lng: -95.9, Limit: 2, Offset: 2}, nil)
	if err != nil {
		t.Fatalf("paged feed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d rows, want 2", len(page))
	}
	if page[0].ID != all[2].ID || page[1].ID != all[3].ID {
		t.Fatal("page does not line up with the full ordering")
	}
}

func TestNearbyPostJSONKeepsAnnotations(t *testing.T) {
	rows := []NearbyPost{{
		Post:            models.Post{Title: "hello"},
		AuthorFirstName: "Ada",
		AuthorLastName:  "Lovelace",
		AuthorAvatarURL: "https://example.com/ada.png",
		DistanceMiles:   12.5,
	}}

	payload, err := json.Marshal(rows)
	if err != nil {
		t.Fatalf("marshal feed row: %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode feed row: %v", err)
	}
	row := decoded[0]

	if row["title"] != "hello" {
		t.Fatalf("post fields missing from rendering: %s", payload)
	}
	if row["authorFirstName"] != "Ada" || row["authorLastName"] != "Lovelace" {
		t.Fatalf("author fields missing from rendering: %s", payload)
	}
	if row["authorAvatarURL"] != "https://example.com/ada.png" {
		t.Fatalf("avatar missing from rendering: %s", payload)
	}
	if dist, ok := row["distanceMiles"].(float64); !ok || dist != 12.5 {
		t.Fatalf("distanceMiles missing from rendering: %s", payload)
	}
}

func TestNearbyPostsCustomDistanceFunc(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "Ada", "L", "ada@example.com")
	createPost(t, db, models.Post{AuthorID: author.ID, Title: "p", Priority: models.PriorityNormal,
		Lat: ptr(36.2), Lng: ptr(-95.9)})

	fixed := func(lat1, lng1, lat2, lng2 float64) float64 { return 42 }
	rows, err := NearbyPosts(db, NearbyPostsParams{Lat: 36.1, Lng: -95.9}, fixed)
	if err != nil {
		t.Fatalf("nearby posts: %v", err)
	}
	if len(rows) != 1 || rows[0].DistanceMiles != 42 {
		t.Fatalf("custom distance func not applied: %+v", rows)
	}
}
