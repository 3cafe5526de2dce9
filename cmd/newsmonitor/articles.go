package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/newsmonitor/internal/category"
	"github.com/IshaanNene/newsmonitor/internal/storage"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// articlesCmd creates the "articles" subcommand.
func articlesCmd() *cobra.Command {
	var (
		cat    string
		source string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List recently stored articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.ArticleFilter{Source: source, Limit: limit}
			if cat != "" {
				filter.Category = category.Resolve(cat)
			}

			store, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			articles, err := store.ListArticles(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list articles: %w", err)
			}
			printArticles(articles)
			return nil
		},
	}
	cmd.Flags().StringVar(&cat, "category", "", "only articles in this category (aliases accepted)")
	cmd.Flags().StringVar(&source, "source", "", "only articles from this source label")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum articles to show")
	return cmd
}

// changesCmd creates the "changes" subcommand.
func changesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "changes [article-url]",
		Short: "Show the edit history of one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			article, err := store.GetArticleByURL(cmd.Context(), args[0])
			if errors.Is(err, types.ErrArticleNotFound) {
				return fmt.Errorf("no stored article with URL %s", args[0])
			}
			if err != nil {
				return err
			}
			changes, err := store.ListChanges(cmd.Context(), article.ID)
			if err != nil {
				return fmt.Errorf("list changes: %w", err)
			}
			printChanges(article, changes)
			return nil
		},
	}
}
