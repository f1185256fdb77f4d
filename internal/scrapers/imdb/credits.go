package imdb

import (
	"fmt"
	"realitease/lib/htmlutil"
	"realitease/lib/textutil"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Member identifies a cast member on a full credits page.
type Member struct {
	Name   string
	IMDbID string
}

// MatchKind says which rule located a cast anchor.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExactID
	MatchIDSubstring
	MatchExactName
	MatchNameSubstring
	MatchFuzzy
)

// fuzzyTokenRatio is the minimum token overlap for the last resort match.
const fuzzyTokenRatio = 0.5

var episodesRegex = regexp.MustCompile(`(?i)(\d+)\s+ep(?:isode)?s?\b`)

func nameAnchors(doc *goquery.Selection) *goquery.Selection {
	return doc.Find(`a[href*="/name/"]`)
}

// FindCastAnchor locates the anchor of a member, trying in order: exact href id,
// href substring, exact name text, name substring, then token overlap.
func FindCastAnchor(doc *goquery.Selection, member Member) (*goquery.Selection, MatchKind) {
	anchors := nameAnchors(doc)

	if id := strings.TrimSpace(member.IMDbID); id != "" {
		exact := anchors.FilterFunction(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			return strings.Contains(href, "/name/"+id+"/") || strings.HasSuffix(href, "/name/"+id)
		})
		if exact.Length() > 0 {
			return exact.First(), MatchExactID
		}
		partial := doc.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			return strings.Contains(href, id)
		})
		if partial.Length() > 0 {
			return partial.First(), MatchIDSubstring
		}
	}

	name := textutil.NormalizeName(member.Name)
	if name == "" {
		return nil, MatchNone
	}

	var found, substring, fuzzy *goquery.Selection
	bestRatio := 0.0
	anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := textutil.NormalizeName(htmlutil.Text(a))
		if text == "" {
			return true
		}
		if text == name {
			found = a
			return false
		}
		if substring == nil && strings.Contains(" "+text+" ", " "+name+" ") {
			substring = a
		}
		if ratio := textutil.TokenRatio(text, name); ratio >= fuzzyTokenRatio && ratio > bestRatio {
			bestRatio = ratio
			fuzzy = a
		}
		return true
	})
	switch {
	case found != nil:
		return found, MatchExactName
	case substring != nil:
		return substring, MatchNameSubstring
	case fuzzy != nil:
		return fuzzy, MatchFuzzy
	}
	return nil, MatchNone
}

// maxAncestors bounds how far up the tree the episodes control search goes.
const maxAncestors = 8

func isCastContainer(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "li", "tr":
		return true
	case "div":
		class := strings.ToLower(s.AttrOr("class", ""))
		return strings.Contains(class, "cast") || strings.Contains(class, "credit")
	}
	return false
}

// FindEpisodesControl walks the containers around an anchor and returns the first
// button, link or span whose text reads "N episodes".
func FindEpisodesControl(anchor *goquery.Selection) *goquery.Selection {
	current := anchor.Parent()
	for i := 0; i < maxAncestors && current.Length() > 0; i++ {
		if i == 0 || isCastContainer(current) {
			control := current.Find("button, a, span").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return episodesRegex.MatchString(htmlutil.Text(s))
			})
			if control.Length() > 0 {
				// prefer the clickable element over a span inside it
				first := control.First()
				if goquery.NodeName(first) == "span" {
					if clickable := first.Closest("button, a"); clickable.Length() > 0 {
						return clickable
					}
				}
				return first
			}
			if goquery.NodeName(current) == "li" || goquery.NodeName(current) == "tr" {
				return nil
			}
		}
		current = current.Parent()
	}
	return nil
}

// EpisodeCount reads the number out of an "N episodes" text.
func EpisodeCount(text string) (int, bool) {
	m := episodesRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil && n > 0
}

// CSSPath builds a selector that addresses exactly the node of sel in the same
// document: "html > body > div:nth-child(2) > ...".
func CSSPath(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var parts []string
	for n := sel.Get(0); n != nil && n.Type == html.ElementNode; n = n.Parent {
		if n.Data == "html" {
			parts = append(parts, "html")
			break
		}
		index := 1
		for sibling := n.PrevSibling; sibling != nil; sibling = sibling.PrevSibling {
			if sibling.Type == html.ElementNode {
				index++
			}
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", n.Data, index))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// CrewSections are the full credits headings that mark crew, not cast.
var CrewSections = []string{
	"directed by", "produced by", "writing credits", "written by", "music by",
	"cinematography by", "film editing by", "editing by", "casting by",
	"production design by", "art direction by", "set decoration by",
	"costume design by", "makeup department", "production management",
	"second unit director", "art department", "sound department", "special effects",
	"visual effects", "stunts", "camera and electrical department",
	"casting department", "costume and wardrobe department", "editorial department",
	"location management", "music department", "script and continuity department",
	"transportation department", "additional crew", "thanks",
}

const headingSelector = "h3, h4, .ipc-title__text, .dataHeaderWithBorder"

// headingKind classifies a credits heading. Crew keywords may appear anywhere in the
// heading ("Special Thanks", "Series Produced by"), cast headings start with "cast".
func headingKind(text string) (crew, cast bool) {
	text = htmlutil.CleanText(text)
	if text == "" {
		return false, false
	}
	if textutil.MatchName(text, CrewSections) {
		return true, false
	}
	text = strings.TrimPrefix(strings.ToLower(text), "series ")
	return false, strings.HasPrefix(text, "cast")
}

// sectionScope returns the credits that belong to a heading: the enclosing section
// on current pages, the siblings up to the next heading on older ones.
func sectionScope(heading *goquery.Selection) *goquery.Selection {
	if section := heading.Closest(`section, [data-testid^="sub-section"]`); section.Length() > 0 {
		if section.Find(headingSelector).Length() <= 2 {
			return section
		}
	}
	return heading.NextUntil(headingSelector)
}

func containsMember(scope *goquery.Selection, member Member) bool {
	found := false
	scope.Find("a[href]").AddSelection(scope.Filter("a[href]")).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if member.IMDbID != "" && strings.Contains(href, member.IMDbID) {
			found = true
		} else if member.Name != "" && strings.Contains(href, "/name/") &&
			textutil.NormalizeName(htmlutil.Text(a)) == textutil.NormalizeName(member.Name) {
			found = true
		}
		return !found
	})
	return found
}

// FindCrew reports the crew section a member is listed under when the member is not
// also listed in the cast section.
func FindCrew(doc *goquery.Selection, member Member) (string, bool) {
	crewSection := ""
	inCast := false
	doc.Find(headingSelector).Each(func(_ int, heading *goquery.Selection) {
		crew, cast := headingKind(heading.Text())
		if !crew && !cast {
			return
		}
		if !containsMember(sectionScope(heading), member) {
			return
		}
		if cast {
			inCast = true
		} else if crewSection == "" {
			crewSection = htmlutil.CleanText(heading.Text())
		}
	})
	if inCast || crewSection == "" {
		return "", false
	}
	return crewSection, true
}
