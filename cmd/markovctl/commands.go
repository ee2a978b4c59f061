package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Conceptual-Machines/magda-markov/internal/middleware"
	"github.com/Conceptual-Machines/magda-markov/internal/models"
	"github.com/Conceptual-Machines/magda-markov/internal/services"
	"github.com/Conceptual-Machines/magda-markov/internal/store"
	"github.com/spf13/cobra"
)

const defaultTokenTTL = 24 * time.Hour

func runCompose(cmd *cobra.Command, _ []string) error {
	c, err := loadCorpus(corpusPath)
	if err != nil {
		return err
	}
	pitches, durations, err := c.sequences()
	if err != nil {
		return err
	}

	length, _ := cmd.Flags().GetInt("length")
	strategy, _ := cmd.Flags().GetString("strategy")
	velocity, _ := cmd.Flags().GetInt("velocity")

	in := services.ComposeInput{
		Pitches:   pitches,
		Durations: durations,
		Order:     order,
		Length:    length,
		Strategy:  strategy,
		Velocity:  velocity,
	}
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetInt64("seed")
		in.Seed = &seed
	}

	composer := services.NewComposer(nil, nil, services.Limits{}, 0)
	result, err := composer.Compose(cmd.Context(), in)
	if err != nil {
		return err
	}
	return writeJSON(cmd, result)
}

func runTable(cmd *cobra.Command, args []string) error {
	kind := models.KindPitch
	if len(args) == 1 {
		kind = args[0]
	}

	c, err := loadCorpus(corpusPath)
	if err != nil {
		return err
	}
	pitches, durations, err := c.sequences()
	if err != nil {
		return err
	}
	sequences := pitches
	if kind == models.KindDuration {
		sequences = durations
	}

	// a throwaway service gives the same validation and table shape as the API
	chains := services.NewChainService(store.NewMemoryStore(), nil, services.Limits{})
	caller := services.Caller{ID: "markovctl", Role: models.RoleAdmin}
	info, err := chains.Create(cmd.Context(), caller, services.CreateInput{
		Name:      corpusPath,
		Order:     order,
		Kind:      kind,
		Sequences: sequences,
	})
	if err != nil {
		return err
	}

	top, _ := cmd.Flags().GetInt("top")
	table, err := chains.Table(cmd.Context(), info.ID, top)
	if err != nil {
		return err
	}
	return writeJSON(cmd, table)
}

func runToken(cmd *cobra.Command, args []string) error {
	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	role, _ := cmd.Flags().GetString("role")
	if role != models.RoleUser && role != models.RoleAdmin {
		return fmt.Errorf("unknown role %q (allowed: %s, %s)", role, models.RoleUser, models.RoleAdmin)
	}
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	token, err := middleware.IssueToken(secret, args[0], role, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
