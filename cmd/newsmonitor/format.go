package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/IshaanNene/newsmonitor/internal/engine"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

const (
	titleWidth = 60
	valueWidth = 70
)

// cell truncates s to width display columns and pads it to exactly width.
// Accented and wide characters are measured by display width, not bytes.
func cell(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	s = runewidth.Truncate(s, width, "...")
	return runewidth.FillRight(s, width)
}

func printSummaries(summaries []types.Summary) {
	fmt.Printf("%s  %s\n", cell("TITLE", titleWidth), "URL")
	fmt.Println(strings.Repeat("-", titleWidth+40))
	for _, s := range summaries {
		fmt.Printf("%s  %s\n", cell(s.Title, titleWidth), s.URL)
	}
}

func printSourceResults(results []engine.SourceResult) {
	fmt.Printf("%s  %9s  %8s  %s\n", cell("SOURCE", 30), "PROCESSED", "TIME", "STATUS")
	fmt.Println(strings.Repeat("-", 70))
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = "failed: " + r.Err.Error()
		}
		fmt.Printf("%s  %9d  %8s  %s\n",
			cell(r.Source.Name, 30),
			r.Processed(),
			r.Duration.Round(100*time.Millisecond),
			status,
		)
	}
}

func printSources(list []types.Source, now time.Time) {
	if len(list) == 0 {
		fmt.Println("No sources configured.")
		return
	}
	fmt.Printf("%-36s  %-7s  %-10s  %s  %s\n", "ID", "ENABLED", "SCRAPED", cell("NAME", 24), "URL")
	fmt.Println(strings.Repeat("-", 110))
	for _, src := range list {
		scraped := "never"
		if src.LastScrapedAt != nil {
			scraped = formatAge(now.Sub(*src.LastScrapedAt)) + " ago"
		}
		fmt.Printf("%-36s  %-7v  %-10s  %s  %s\n", src.ID, src.Enabled, scraped, cell(src.Name, 24), src.URL)
	}
}

func printArticles(articles []types.Article) {
	if len(articles) == 0 {
		fmt.Println("No articles stored.")
		return
	}
	for _, a := range articles {
		published := "unknown date"
		if a.PublishedAt != nil {
			published = a.PublishedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%s\n", runewidth.Truncate(a.Title, titleWidth+20, "..."))
		fmt.Printf("   %s | %s | %s\n", a.Source, types.Deref(a.Category), published)
		fmt.Printf("   URL: %s\n", a.URL)
		fmt.Println()
	}
}

func printChanges(article *types.Article, changes []types.ChangeRecord) {
	fmt.Printf("%s\n   %s\n\n", article.Title, article.URL)
	if len(changes) == 0 {
		fmt.Println("No changes recorded since the article was first seen.")
		return
	}
	for _, c := range changes {
		fmt.Printf("%s  %s\n", c.DetectedAt.Format("2006-01-02 15:04:05"), c.Field)
		fmt.Printf("   - %s\n", runewidth.Truncate(oneLine(c.OldValue), valueWidth, "..."))
		fmt.Printf("   + %s\n", runewidth.Truncate(oneLine(c.NewValue), valueWidth, "..."))
	}
}

func oneLine(s string) string {
	if s == "" {
		return "(empty)"
	}
	return strings.Join(strings.Fields(s), " ")
}

func formatAge(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
