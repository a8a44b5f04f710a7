package cli

import (
	"context"
	stderrors "errors"
	"fmt"

	"atscore/internal/aggregate"
	"atscore/internal/errors"
	"atscore/internal/store"
	"atscore/internal/types"

	"github.com/spf13/cobra"
)

func newUserCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and inspect their score history",
	}
	cmd.AddCommand(newUserCreateCmd(root), newUserGetCmd(root), newUserEventsCmd(root))
	return cmd
}

func newUserCreateCmd(root *rootOptions) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{store: true}, func(ctx context.Context, a *app) error {
				user := &types.User{Email: email, Name: name}
				if err := a.store.CreateUser(ctx, user); err != nil {
					return err
				}
				a.logger.Info("User created", "user_id", user.ID)
				return outputHandler(cmd, a.logger).HandleOutput(user, root.output)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email (required)")
	cmd.Flags().StringVar(&name, "name", "", "User display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserGetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [userID]",
		Short: "Show a user and their score summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{store: true}, func(ctx context.Context, a *app) error {
				user, err := lookupUser(ctx, a, args[0])
				if err != nil {
					return err
				}
				return outputHandler(cmd, a.logger).HandleOutput(user, root.output)
			})
		},
	}
}

func newUserEventsCmd(root *rootOptions) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "events [userID]",
		Short: "List a user's scored events, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{store: true}, func(ctx context.Context, a *app) error {
				events, err := userEvents(ctx, a, args[0], source)
				if err != nil {
					return err
				}
				return outputHandler(cmd, a.logger).HandleOutput(events, root.output)
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Only list events from this source: resume-version or submission")
	return cmd
}

// lookupUser maps a missing user to USER_NOT_FOUND
func lookupUser(ctx context.Context, a *app, userID string) (*types.User, error) {
	user, err := a.store.GetUser(ctx, userID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewValidationError(errors.ErrCodeUserNotFound,
			fmt.Sprintf("User %s not found", userID), err)
	}
	return user, err
}

// userEvents lists one source, or both merged newest first
func userEvents(ctx context.Context, a *app, userID, source string) ([]types.ScoredEvent, error) {
	if _, err := lookupUser(ctx, a, userID); err != nil {
		return nil, err
	}
	if source != "" {
		events, err := a.store.ListEvents(ctx, userID, source)
		if err != nil {
			return nil, err
		}
		return aggregate.Merge(events), nil
	}

	versions, err := a.store.ListEvents(ctx, userID, types.EventSourceResumeVersion)
	if err != nil {
		return nil, err
	}
	submissions, err := a.store.ListEvents(ctx, userID, types.EventSourceSubmission)
	if err != nil {
		return nil, err
	}
	return aggregate.Merge(versions, submissions), nil
}
