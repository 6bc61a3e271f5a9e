package main

import (
	"fmt"

	"github.com/raffleworks/backend/internal/model"
	"github.com/urfave/cli/v2"
)

func (s *srv) startDraw(cctx *cli.Context) error {
	s.loadConfig(cctx)
	s.loadLogger()
	s.loadDatabase()
	s.loadCache()
	s.loadStorage()
	s.loadRepos()
	s.loadDomains()
	s.migrateDB()

	resp, err := s.drawDomain.RunDraw(s.ctx, &model.RunDrawRequest{
		RunID:       cctx.String("run-id"),
		WinnerCount: cctx.Int("winners"),
		Prizes:      cctx.StringSlice("prize"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Run %s executed with seed %s\n", resp.RunID, resp.Seed)
	if resp.Underfilled {
		fmt.Println("Fewer approved participants than requested winners")
	}

	for _, winner := range resp.Winners {
		fmt.Printf("  #%d participant %d", winner.Position, winner.ExternalID)
		if winner.PrizeDescription != "" {
			fmt.Printf(" wins %s", winner.PrizeDescription)
		}
		fmt.Println()
	}

	return nil
}
