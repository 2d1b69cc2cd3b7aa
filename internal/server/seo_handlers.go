package server

import (
	"encoding/xml"
	"strings"
	"time"

	"cozytiny/internal/models"

	"github.com/gofiber/fiber/v2"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// buildSitemap lists the home page and every post page under base.
func buildSitemap(base string, entries []models.SitemapEntry) sitemapURLSet {
	base = strings.TrimRight(base, "/")
	urls := make([]sitemapURL, 0, len(entries)+1)
	urls = append(urls, sitemapURL{Loc: base + "/"})
	for _, e := range entries {
		urls = append(urls, sitemapURL{
			Loc:     base + "/post/" + e.Slug,
			LastMod: e.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return sitemapURLSet{XMLNS: sitemapNS, URLs: urls}
}

// GetSitemap handles GET /sitemap.xml
// @Summary Sitemap of all post pages
// @Tags seo
// @Produce xml
// @Success 200 {string} string
// @Router /sitemap.xml [get]
func (s *Server) GetSitemap(c *fiber.Ctx) error {
	entries, err := s.postService.SitemapEntries(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	out, err := xml.Marshal(buildSitemap(s.config.SiteURL, entries))
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.Send(append([]byte(xml.Header), out...))
}

// GetRobots handles GET /robots.txt
func (s *Server) GetRobots(c *fiber.Ctx) error {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /api/\n")
	b.WriteString("Disallow: /CMSPage\n")
	b.WriteString("\nSitemap: " + strings.TrimRight(s.config.SiteURL, "/") + "/sitemap.xml\n")
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(b.String())
}
