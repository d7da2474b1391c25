package confluence

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

var (
	displayLink = regexp.MustCompile(`/display/~([^/?#]+)`)
	usersLink   = regexp.MustCompile(`/users/([^/?#]+)`)
)

// KeyResolver turns a wiki user key into a username, or "" when unknown.
type KeyResolver func(key string) string

// ParseLeads scans the first table of a storage-format page. A cell naming a
// lead sets the current lead; every team name in the same column, in that row
// or in later rows, maps to "@" + that lead until another lead appears.
func ParseLeads(storage string, column int, teamPattern *regexp.Regexp, resolve KeyResolver) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(storage))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page body: %w", err)
	}

	leads := make(map[string]string)
	table := doc.Find("table").First()
	if table.Length() == 0 {
		log.Warn().Msg("No table found on the leads page")
		return leads, nil
	}

	currentLead := ""
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() <= column {
			return
		}
		cell := cells.Eq(column)
		text := cellText(cell)

		if lead := leadFromTags(cell, resolve); lead != "" {
			currentLead = lead
		} else if lead := leadFromText(text); lead != "" {
			currentLead = lead
		}

		for _, part := range strings.Fields(text) {
			team := strings.Trim(part, ",;")
			if !teamPattern.MatchString(team) {
				continue
			}
			if currentLead == "" {
				log.Debug().Str("team", team).Int("row", i).Msg("Team has no lead yet")
				continue
			}
			leads[team] = "@" + currentLead
		}
	})

	return leads, nil
}

// leadFromTags checks the cell's elements in document order for a user
// reference.
func leadFromTags(cell *goquery.Selection, resolve KeyResolver) string {
	found := ""
	cell.Find("*").EachWithBreak(func(_ int, tag *goquery.Selection) bool {
		if key, ok := tag.Attr("ri:userkey"); ok {
			if resolve != nil {
				found = resolve(key)
			}
			return found == ""
		}
		if name, ok := tag.Attr("ri:username"); ok && name != "" {
			found = name
			return false
		}
		if name, ok := tag.Attr("data-username"); ok && name != "" {
			found = name
			return false
		}
		if href, ok := tag.Attr("href"); ok {
			for _, re := range []*regexp.Regexp{displayLink, usersLink} {
				if m := re.FindStringSubmatch(href); m != nil {
					found = m[1]
					return false
				}
			}
		}
		return true
	})
	return found
}

func leadFromText(text string) string {
	for _, word := range strings.Fields(text) {
		if len(word) > 1 && strings.HasPrefix(word, "@") {
			return strings.TrimPrefix(word, "@")
		}
	}
	return ""
}

// cellText joins the text nodes of a cell with spaces and collapses
// whitespace, including non-breaking spaces.
func cellText(s *goquery.Selection) string {
	var parts []string
	s.Contents().Each(func(_ int, n *goquery.Selection) {
		if goquery.NodeName(n) == "#text" {
			parts = append(parts, n.Text())
			return
		}
		parts = append(parts, cellText(n))
	})
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
