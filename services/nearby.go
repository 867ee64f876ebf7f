package services

import (
	"encoding/json"
	"fmt"
	"time"

	"stormneighbor-server/models"

	"gorm.io/gorm"
)

const (
	DefaultNearbyLimit = 20
	MaxNearbyLimit     = 100
	DefaultRadiusMiles = 10.0
)

// NearbyPostsParams selects and pages the community feed around a point.
//
// RadiusMiles is accepted for API compatibility but is deliberately not
// applied as a filter: the feed shows the whole community ordered by urgency,
// and the computed distance is informational. See DESIGN.md for the decision
// record.
type NearbyPostsParams struct {
	Lat         float64
	Lng         float64
	City        string
	State       string
	RadiusMiles float64
	CityOnly    bool
	Limit       int
	Offset      int
}

// NearbyPost is one feed row: the post plus the author's display fields
// joined at read time, and the distance from the query point in miles.
type NearbyPost struct {
	models.Post
	AuthorFirstName string  `json:"authorFirstName"`
	AuthorLastName  string  `json:"authorLastName"`
	AuthorAvatarURL string  `json:"authorAvatarURL"`
	DistanceMiles   float64 `json:"distanceMiles"`
}

// MarshalJSON merges the embedded post's rendering with the feed annotations.
// The embedded Post marshaler would otherwise be promoted and drop them.
func (p *NearbyPost) MarshalJSON() ([]byte, error) {
	base, err := p.Post.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var row map[string]interface{}
	if err := json.Unmarshal(base, &row); err != nil {
		return nil, err
	}
	row["authorFirstName"] = p.AuthorFirstName
	row["authorLastName"] = p.AuthorLastName
	row["authorAvatarURL"] = p.AuthorAvatarURL
	row["distanceMiles"] = p.DistanceMiles

	return json.Marshal(row)
}

// priorityRankSQL maps the priority tier to its sort rank, urgent first.
const priorityRankSQL = "CASE posts.priority" +
	" WHEN 'urgent' THEN 1" +
	" WHEN 'high' THEN 2" +
	" WHEN 'normal' THEN 3" +
	" ELSE 4 END"

// NearbyPosts returns a page of eligible posts ordered by emergency flag,
// priority tier, then recency, with post id as the final tiebreak so the
// order is total and reproducible.
//
// Eligibility: not removed by moderation, and not expired
// (expires_at IS NULL OR expires_at > now). In city-scoped mode only posts
// whose stored city/state exactly match the query are candidates.
//
// distance may be nil, in which case FlatMiles is used. Posts without a
// geographic point report distance 0.
func NearbyPosts(db *gorm.DB, p NearbyPostsParams, distance DistanceFunc) ([]NearbyPost, error) {
	if distance == nil {
		distance = FlatMiles
	}
	if p.Limit <= 0 {
		p.Limit = DefaultNearbyLimit
	}
	if p.Limit > MaxNearbyLimit {
		p.Limit = MaxNearbyLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	q := db.Model(&models.Post{}).
		Select("posts.*, users.first_name AS author_first_name, users.last_name AS author_last_name, users.avatar_url AS author_avatar_url").
		Joins("JOIN users ON users.id = posts.author_id").
		Where("posts.is_removed = ?", false).
		Where("posts.expires_at IS NULL OR posts.expires_at > ?", time.Now())

	if p.CityOnly && p.City != "" {
		q = q.Where("posts.location_city = ? AND posts.location_state = ?", p.City, p.State)
	}

	var rows []NearbyPost
	err := q.
		Order("posts.is_emergency DESC").
		Order(priorityRankSQL).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(p.Limit).
		Offset(p.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("nearby posts query: %w", err)
	}

	for i := range rows {
		if rows[i].Lat != nil && rows[i].Lng != nil {
			rows[i].DistanceMiles = distance(p.Lat, p.Lng, *rows[i].Lat, *rows[i].Lng)
		}
	}
	return rows, nil
}
