package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"linktrack/internal/gemini"
	"linktrack/internal/linkedin"
	"linktrack/internal/tracker"

	"github.com/spf13/cobra"
)

// readContent returns the post text from the argument, --file, or stdin.
func readContent(cmd *cobra.Command, args []string) (string, error) {
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading content file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if len(args) > 0 {
		return args[0], nil
	}
	return "", fmt.Errorf("provide the post text as an argument or via --file")
}

func visibilityFlag(cmd *cobra.Command, fallback string) (tracker.Visibility, error) {
	raw, _ := cmd.Flags().GetString("visibility")
	if raw == "" {
		raw = fallback
	}
	v := tracker.Visibility(strings.ToUpper(raw))
	if !tracker.ValidVisibility(v) {
		return "", fmt.Errorf("invalid visibility %q (use PUBLIC, CONNECTIONS, or LOGGED_IN)", raw)
	}
	return v, nil
}

// post command
var postCmd = &cobra.Command{
	Use:   "post [TEXT]",
	Short: "Publish a post now and track it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CreatePost")
		if err != nil {
			return err
		}
		defer a.Close()

		text, err := readContent(cmd, args)
		if err != nil {
			return err
		}
		v, err := visibilityFlag(cmd, a.Config().Posting.DefaultVisibility)
		if err != nil {
			return err
		}

		category, _ := cmd.Flags().GetString("category")
		article, _ := cmd.Flags().GetString("article")
		title, _ := cmd.Flags().GetString("title")

		svc, err := a.NetworkService()
		if err != nil {
			return err
		}

		urn, _, err := svc.CreatePost(cmd.Context(), text, category, article, title, v)
		if err != nil {
			if urn != "" {
				// Published but not tracked locally; surface the URN so the
				// user can run 'linktrack track' by hand.
				errText.Printf("Published as %s but local tracking failed: %v\n", urn, err)
				return err
			}
			return fmt.Errorf("publishing: %w", err)
		}

		okText.Printf("Published: %s\n", urn)
		return nil
	},
}

// track command
var trackCmd = &cobra.Command{
	Use:   "track URL_OR_URN",
	Short: "Track an existing post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("TrackPost")
		if err != nil {
			return err
		}
		defer a.Close()

		urn, err := linkedin.ExtractURN(args[0])
		if err != nil {
			return err
		}
		v, err := visibilityFlag(cmd, a.Config().Posting.DefaultVisibility)
		if err != nil {
			return err
		}

		category, _ := cmd.Flags().GetString("category")
		preview, _ := cmd.Flags().GetString("preview")
		article, _ := cmd.Flags().GetString("article")

		id, err := a.LocalService().TrackPost(tracker.SavePostParams{
			URN:            urn,
			CategoryName:   category,
			ContentPreview: preview,
			ArticleURL:     article,
			Visibility:     v,
		})
		if err != nil {
			if errors.Is(err, tracker.ErrDuplicateURN) {
				return fmt.Errorf("already tracking %s", urn)
			}
			return err
		}

		okText.Printf("Tracking %s (id %d)\n", urn, id)
		return nil
	},
}

// posts command
var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List tracked posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("ListPosts")
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.LocalService().ListPosts(limit)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("No posts tracked yet.")
			return nil
		}

		header.Printf("%-4s  %-16s  %-12s  %s\n", "ID", "POSTED", "CATEGORY", "PREVIEW")
		for _, p := range posts {
			category := p.Category
			if category == "" {
				category = "-"
			}
			fmt.Printf("%-4d  %-16s  %-12s  %s\n",
				p.ID,
				p.PostedAt.Local().Format("2006-01-02 15:04"),
				category,
				oneLine(p.ContentPreview, 60),
			)
		}
		return nil
	},
}

// categories command
var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories with post counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListCategories")
		if err != nil {
			return err
		}
		defer a.Close()

		cats, err := a.LocalService().ListCategories()
		if err != nil {
			return err
		}
		if len(cats) == 0 {
			fmt.Println("No categories yet.")
			return nil
		}

		header.Printf("%-20s  %s\n", "CATEGORY", "POSTS")
		for _, c := range cats {
			fmt.Printf("%-20s  %d\n", c.Name, c.PostCount)
		}
		return nil
	},
}

// fetch-posts command
var fetchPostsCmd = &cobra.Command{
	Use:   "fetch-posts",
	Short: "List your recent posts from LinkedIn",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		track, _ := cmd.Flags().GetBool("track")

		a, err := newApp("FetchPosts")
		if err != nil {
			return err
		}
		defer a.Close()

		client, err := a.LinkedIn()
		if err != nil {
			return err
		}

		remote, err := client.ListRecentPosts(cmd.Context(), count)
		if err != nil {
			return err
		}
		if len(remote) == 0 {
			fmt.Println("No posts found on LinkedIn.")
			return nil
		}

		for _, p := range remote {
			posted := "-"
			if !p.PublishedAt.IsZero() {
				posted = p.PublishedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("%s  %-16s  %s\n", p.URN, posted, oneLine(p.Text, 60))

			if track {
				_, err := a.LocalService().TrackPost(tracker.SavePostParams{
					URN:            p.URN,
					ContentPreview: p.Text,
					Visibility:     tracker.Visibility(p.Visibility),
				})
				switch {
				case errors.Is(err, tracker.ErrDuplicateURN):
					dimText.Println("    already tracked")
				case err != nil:
					errText.Printf("    tracking failed: %v\n", err)
				default:
					okText.Println("    tracked")
				}
			}
		}
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete URL_OR_URN",
	Short: "Delete a post from LinkedIn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		urn, err := linkedin.ExtractURN(args[0])
		if err != nil {
			return err
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			fmt.Printf("Delete %s from LinkedIn? This cannot be undone. [y/N] ", urn)
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		a, err := newApp("DeletePost")
		if err != nil {
			return err
		}
		defer a.Close()

		client, err := a.LinkedIn()
		if err != nil {
			return err
		}

		if err := client.DeletePost(cmd.Context(), urn); err != nil {
			return err
		}

		okText.Printf("Deleted %s\n", urn)
		fmt.Println("The local tracking record, if any, is kept for history.")
		return nil
	},
}

// draft command
var draftCmd = &cobra.Command{
	Use:   "draft TOPIC",
	Short: "Generate a post draft with Gemini",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Draft")
		if err != nil {
			return err
		}
		defer a.Close()

		drafts, err := a.Drafts()
		if err != nil {
			return err
		}

		category, _ := cmd.Flags().GetString("category")
		tone, _ := cmd.Flags().GetString("tone")
		maxWords, _ := cmd.Flags().GetInt("max-words")

		text, err := drafts.Draft(cmd.Context(), gemini.DraftRequest{
			Topic:    args[0],
			Category: category,
			Tone:     tone,
			MaxWords: maxWords,
		})
		if err != nil {
			return fmt.Errorf("drafting: %w", err)
		}

		fmt.Println(text)
		return nil
	},
}

// oneLine collapses text to a single line, truncated to max runes.
func oneLine(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func init() {
	postCmd.Flags().StringP("category", "c", "", "Category to file the post under")
	postCmd.Flags().StringP("file", "f", "", "Read the post text from a file")
	postCmd.Flags().String("article", "", "URL to attach as an article")
	postCmd.Flags().String("title", "", "Title for the attached article")
	postCmd.Flags().String("visibility", "", "PUBLIC, CONNECTIONS, or LOGGED_IN")

	trackCmd.Flags().StringP("category", "c", "", "Category to file the post under")
	trackCmd.Flags().String("preview", "", "Content preview to store")
	trackCmd.Flags().String("article", "", "Article URL attached to the post")
	trackCmd.Flags().String("visibility", "", "PUBLIC, CONNECTIONS, or LOGGED_IN")

	postsCmd.Flags().IntP("limit", "n", 20, "Maximum number of posts to show")

	fetchPostsCmd.Flags().IntP("count", "n", 10, "Number of posts to fetch")
	fetchPostsCmd.Flags().Bool("track", false, "Track fetched posts locally")

	deleteCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	draftCmd.Flags().StringP("category", "c", "", "Content category for the draft")
	draftCmd.Flags().String("tone", "", "Tone of voice, e.g. casual, technical")
	draftCmd.Flags().Int("max-words", 0, "Rough word limit")

	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(fetchPostsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(draftCmd)
}
