package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkline/civicsync/civic"
	"github.com/mkline/civicsync/issues"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Browse and manage reported issues",
}

var (
	listPage     int
	listLimit    int
	listSearch   string
	listCategory string
	listStatus   string
	listOldest   bool
)

var issuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues with filters and pagination",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		sortDir := issues.SortNewest
		if listOldest {
			sortDir = issues.SortOldest
		}
		client.Issues.SetQuery(issues.QueryUpdate{
			Search:   &listSearch,
			Category: &listCategory,
			Status:   &listStatus,
			Sort:     &sortDir,
			Limit:    &listLimit,
		})
		client.Issues.SetQuery(issues.QueryUpdate{Page: &listPage})

		page, err := client.Issues.FetchList(cmd.Context())
		if err != nil {
			return err
		}
		printIssues(page.Items)
		fmt.Printf("page %d of %d (%d issues)\n", page.Page, page.TotalPages, page.Total)
		return nil
	},
}

var issuesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one issue in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newRestoredClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		issue, err := client.Issues.FetchDetail(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s [%s]\n", issue.Title, issue.Status)
		fmt.Printf("category: %s\n", issue.Category)
		fmt.Printf("location: %s\n", issue.Location)
		if issue.Latitude != 0 || issue.Longitude != 0 {
			fmt.Printf("coordinates: %f, %f\n", issue.Latitude, issue.Longitude)
		}
		if issue.Author != nil {
			fmt.Printf("reported by: %s\n", issue.Author.Email)
		}
		if issue.ImageURL != "" {
			fmt.Printf("image: %s\n", issue.ImageURL)
		}
		fmt.Printf("votes: %d\n\n%s\n", issue.VoteCount, issue.Description)

		if client.Session.Authenticated() {
			if voted, err := client.Votes.Check(cmd.Context(), issue.ID); err == nil && voted {
				fmt.Println("you have voted for this issue")
			}
			if issues.CanEdit(client.Session.User(), *issue) {
				fmt.Println("this issue is yours and still pending; update/delete available")
			}
		}
		return nil
	},
}

var (
	createTitle       string
	createDescription string
	createCategory    string
	createLocation    string
	createLat         float64
	createLng         float64
	createImage       string
)

var issuesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Report a new issue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newRestoredClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		in := issues.CreateInput{
			Title:       createTitle,
			Description: createDescription,
			Category:    createCategory,
			Location:    createLocation,
			Latitude:    createLat,
			Longitude:   createLng,
		}
		if createImage != "" {
			f, err := os.Open(createImage)
			if err != nil {
				return err
			}
			defer f.Close()
			in.ImageName = filepath.Base(createImage)
			in.Image = f
		}

		issue, err := client.Issues.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Printf("created issue %s (%s)\n", issue.ID, issue.Status)
		return nil
	},
}

var (
	updateTitle       string
	updateDescription string
	updateCategory    string
	updateLocation    string
	updateImage       string
	updateRemoveImage bool
)

var issuesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit an issue you reported",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newRestoredClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		in := issues.UpdateInput{RemoveImage: updateRemoveImage}
		if cmd.Flags().Changed("title") {
			in.Title = &updateTitle
		}
		if cmd.Flags().Changed("description") {
			in.Description = &updateDescription
		}
		if cmd.Flags().Changed("category") {
			in.Category = &updateCategory
		}
		if cmd.Flags().Changed("location") {
			in.Location = &updateLocation
		}
		if updateImage != "" {
			f, err := os.Open(updateImage)
			if err != nil {
				return err
			}
			defer f.Close()
			in.ImageName = filepath.Base(updateImage)
			in.Image = f
		}

		issue, err := client.Issues.Update(cmd.Context(), args[0], in)
		if err != nil {
			return err
		}
		fmt.Printf("updated issue %s\n", issue.ID)
		return nil
	},
}

var issuesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an issue you reported",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newRestoredClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := client.Issues.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

var issuesMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List issues you reported",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newRestoredClient(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		mine, err := client.Issues.FetchUserIssues(cmd.Context())
		if err != nil {
			return err
		}
		printIssues(mine)
		return nil
	},
}

var issuesMapCmd = &cobra.Command{
	Use:   "map",
	Short: "List geo-tagged issues for the map view",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		items, err := client.Issues.FetchMapIssues(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tLAT\tLNG")
		for _, issue := range items {
			fmt.Fprintf(w, "%s\t%s\t%f\t%f\n", issue.ID, issue.Title, issue.Latitude, issue.Longitude)
		}
		return w.Flush()
	},
}

func printIssues(items []civic.Issue) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tSTATUS\tVOTES")
	for _, issue := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			issue.ID, issue.Title, issue.Category, issue.Status, issue.VoteCount)
	}
	w.Flush()
}

func init() {
	issuesListCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	issuesListCmd.Flags().IntVar(&listLimit, "limit", 10, "Issues per page")
	issuesListCmd.Flags().StringVar(&listSearch, "search", "", "Search in title and description")
	issuesListCmd.Flags().StringVar(&listCategory, "category", "", "Filter by category")
	issuesListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	issuesListCmd.Flags().BoolVar(&listOldest, "oldest", false, "Sort oldest first")

	issuesCreateCmd.Flags().StringVar(&createTitle, "title", "", "Issue title")
	issuesCreateCmd.Flags().StringVar(&createDescription, "description", "", "Issue description")
	issuesCreateCmd.Flags().StringVar(&createCategory, "category", "", "Category (Road, Water, Sanitation, Electricity, Other)")
	issuesCreateCmd.Flags().StringVar(&createLocation, "location", "", "Street address or description of the place")
	issuesCreateCmd.Flags().Float64Var(&createLat, "lat", 0, "Latitude")
	issuesCreateCmd.Flags().Float64Var(&createLng, "lng", 0, "Longitude")
	issuesCreateCmd.Flags().StringVar(&createImage, "image", "", "Path to a photo to attach")
	issuesCreateCmd.MarkFlagRequired("title")
	issuesCreateCmd.MarkFlagRequired("description")
	issuesCreateCmd.MarkFlagRequired("category")
	issuesCreateCmd.MarkFlagRequired("location")

	issuesUpdateCmd.Flags().StringVar(&updateTitle, "title", "", "New title")
	issuesUpdateCmd.Flags().StringVar(&updateDescription, "description", "", "New description")
	issuesUpdateCmd.Flags().StringVar(&updateCategory, "category", "", "New category")
	issuesUpdateCmd.Flags().StringVar(&updateLocation, "location", "", "New location")
	issuesUpdateCmd.Flags().StringVar(&updateImage, "image", "", "Path to a replacement photo")
	issuesUpdateCmd.Flags().BoolVar(&updateRemoveImage, "remove-image", false, "Remove the existing photo")

	issuesCmd.AddCommand(issuesListCmd, issuesShowCmd, issuesCreateCmd,
		issuesUpdateCmd, issuesDeleteCmd, issuesMineCmd, issuesMapCmd)
	rootCmd.AddCommand(issuesCmd)
}
