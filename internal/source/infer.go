package source

import (
	"strings"

	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/slug"
	"golang.org/x/text/unicode/norm"
)

// typeRules are checked in order; the first rule with a matching keyword wins.
// Animation comes first so "hoạt hình bộ" is not taken for a series.
var typeRules = []struct {
	keywords []string
	movie    catalog.MovieType
}{
	{[]string{"hoạt hình", "hoat hinh", "hoathinh", "anime", "animation"}, catalog.TypeHoatHinh},
	{[]string{"tv show", "tvshows", "tvshow", "truyền hình"}, catalog.TypeTVShows},
	{[]string{"phim lẻ", "lẻ", "single", "movie"}, catalog.TypeSingle},
	{[]string{"phim bộ", "bộ", "series", "tv"}, catalog.TypeSeries},
}

// InferType maps a free-text type or format label to a MovieType.
// Unrecognised labels are series.
func InferType(labels ...string) catalog.MovieType {
	text := normalizeLabel(strings.Join(labels, " "))
	for _, rule := range typeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.movie
			}
		}
	}
	return catalog.TypeSeries
}

var completedKeywords = []string{"completed", "hoàn tất", "hoàn thành", "full", "trọn bộ"}

// InferStatus derives completion from a progress text such as
// "Hoàn Tất (16/16)" or "Tập 5"
func InferStatus(progress ...string) catalog.MovieStatus {
	text := normalizeLabel(strings.Join(progress, " "))
	for _, kw := range completedKeywords {
		if strings.Contains(text, kw) {
			return catalog.StatusCompleted
		}
	}
	return catalog.StatusOngoing
}

func normalizeLabel(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

// SplitNames splits comma separated names, trims each and drops empties and
// exact duplicates while keeping order
func SplitNames(values ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// RawEpisode is the episode shape shared by the ophim family of APIs
type RawEpisode struct {
	Name      FlexString `json:"name"`
	Slug      FlexString `json:"slug"`
	Filename  FlexString `json:"filename"`
	LinkEmbed FlexString `json:"link_embed"`
	LinkM3U8  FlexString `json:"link_m3u8"`
	LinkMP4   FlexString `json:"link_mp4"`
}

// RawServer is one upstream server with its episode list
type RawServer struct {
	ServerName FlexString   `json:"server_name"`
	ServerData []RawEpisode `json:"server_data"`
}

// DefaultServerName is used when the upstream leaves the label empty
const DefaultServerName = "Server"

// ToServerGroups normalizes upstream servers. Episodes without any link are
// dropped, a missing episode slug is derived from its name, and repeated
// slugs inside one server keep the first occurrence.
func ToServerGroups(servers []RawServer) []catalog.ServerGroup {
	groups := make([]catalog.ServerGroup, 0, len(servers))
	for i, srv := range servers {
		name := strings.TrimSpace(string(srv.ServerName))
		if name == "" {
			name = DefaultServerName
			if len(servers) > 1 {
				name = DefaultServerName + " #" + itoa(i+1)
			}
		}

		group := catalog.ServerGroup{Name: name}
		seen := make(map[string]struct{})
		for _, raw := range srv.ServerData {
			ep := catalog.Episode{
				ServerName: name,
				Name:       strings.TrimSpace(string(raw.Name)),
				Slug:       strings.TrimSpace(string(raw.Slug)),
				Filename:   strings.TrimSpace(string(raw.Filename)),
				LinkEmbed:  strings.TrimSpace(string(raw.LinkEmbed)),
				LinkM3U8:   strings.TrimSpace(string(raw.LinkM3U8)),
				LinkMP4:    strings.TrimSpace(string(raw.LinkMP4)),
			}
			if ep.Slug == "" {
				ep.Slug = slug.Slugify(ep.Name)
			}
			if ep.Name == "" {
				ep.Name = ep.Slug
			}
			if ep.Slug == "" || !ep.HasLink() {
				continue
			}
			if _, dup := seen[ep.Slug]; dup {
				continue
			}
			seen[ep.Slug] = struct{}{}
			group.Episodes = append(group.Episodes, ep)
		}
		groups = append(groups, group)
	}
	return groups
}

// ResolveImage turns a relative image name into an absolute URL under prefix
func ResolveImage(prefix, image string) string {
	image = strings.TrimSpace(image)
	if image == "" || prefix == "" {
		return image
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") || strings.HasPrefix(image, "//") {
		return image
	}
	return JoinURL(prefix, image)
}
