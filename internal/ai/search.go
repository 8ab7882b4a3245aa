// Package ai answers natural-language questions about tracked applications
// through the Gemini API. Every query passes a validation gate before it is
// allowed anywhere near a prompt, and cross-user questions only ever see data
// from users who opted in.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/inconshreveable/log15"

	"hiretrack/internal/tracker"
)

// ErrInvalidQuery marks queries rejected by the validation gate. The wrapped
// message is safe to show to the user.
var ErrInvalidQuery = errors.New("invalid query")

// contextLimit caps how many applications are serialized into a prompt.
const contextLimit = 1000

// crossUserKeywords route a query to the community prompt when any of them
// appear in the lowercased text.
var crossUserKeywords = []string{
	"who", "others", "users", "people", "everyone", "community",
	"total", "all", "how many people", "which users", "anyone",
}

// Searcher wires the tracker data layer to the Gemini client.
type Searcher struct {
	svc    *tracker.Service
	client *GeminiClient
	log    log.Logger
}

// NewSearcher builds a Searcher over the given service and client.
func NewSearcher(svc *tracker.Service, client *GeminiClient) *Searcher {
	return &Searcher{
		svc:    svc,
		client: client,
		log:    log.New("module", "ai"),
	}
}

type appContext struct {
	Company      string `json:"company"`
	Role         string `json:"role"`
	Season       string `json:"season"`
	CurrentStage string `json:"current_stage"`
	CreatedAt    int64  `json:"created_at"`
	LastUpdated  int64  `json:"last_updated"`
}

type userContext struct {
	TotalApplications int            `json:"total_applications"`
	Applications      []appContext   `json:"applications"`
	StageStatistics   map[string]int `json:"stage_statistics"`
	Companies         []string       `json:"companies"`
	Seasons           []string       `json:"seasons"`
	Roles             []string       `json:"roles"`
}

type communityUser struct {
	Name         string       `json:"name"`
	Applications []appContext `json:"applications"`
}

// Search validates the query, assembles the data context the model is allowed
// to see, and returns the model's answer.
func (s *Searcher) Search(ctx context.Context, userID int64, query string) (string, error) {
	ok, reason := ValidateQuery(query)
	if !ok {
		s.log.Warn("query rejected", "user", userID, "reason", reason)
		return "", fmt.Errorf("%w: %s", ErrInvalidQuery, reason)
	}

	var prompt string
	if isCrossUserQuery(query) {
		data, err := s.communityContext(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("Search: %w", err)
		}
		prompt = fmt.Sprintf(communityPrompt, data)
	} else {
		data, err := s.personalContext(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("Search: %w", err)
		}
		prompt = fmt.Sprintf(personalPrompt, data)
	}
	prompt += fmt.Sprintf("\n\nUSER QUERY: %s\n\nANSWER:", query)

	answer, err := s.client.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("Search: %w", err)
	}
	return answer, nil
}

func isCrossUserQuery(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range crossUserKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func (s *Searcher) userContext(ctx context.Context, userID int64) (*userContext, error) {
	summaries, err := s.svc.ListApplications(ctx, userID, "", "", contextLimit, 0)
	if err != nil {
		return nil, err
	}

	uc := &userContext{
		TotalApplications: len(summaries),
		Applications:      make([]appContext, 0, len(summaries)),
		StageStatistics:   map[string]int{},
	}
	companies := map[string]bool{}
	seasons := map[string]bool{}
	roles := map[string]bool{}
	for _, sum := range summaries {
		ac := appContext{
			Company:      sum.App.Company,
			Role:         sum.App.Role,
			Season:       sum.App.Season,
			CurrentStage: "Unknown",
			CreatedAt:    sum.App.CreatedAt.Int64(),
			LastUpdated:  sum.App.CreatedAt.Int64(),
		}
		if sum.Current != nil {
			ac.CurrentStage = sum.Current.Stage
			ac.LastUpdated = sum.Current.Date.Int64()
		}
		uc.Applications = append(uc.Applications, ac)
		uc.StageStatistics[ac.CurrentStage]++
		if !companies[ac.Company] {
			companies[ac.Company] = true
			uc.Companies = append(uc.Companies, ac.Company)
		}
		if !seasons[ac.Season] {
			seasons[ac.Season] = true
			uc.Seasons = append(uc.Seasons, ac.Season)
		}
		if !roles[ac.Role] {
			roles[ac.Role] = true
			uc.Roles = append(uc.Roles, ac.Role)
		}
	}
	return uc, nil
}

func (s *Searcher) personalContext(ctx context.Context, userID int64) (string, error) {
	uc, err := s.userContext(ctx, userID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(uc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Searcher) communityContext(ctx context.Context, userID int64) (string, error) {
	yours, err := s.userContext(ctx, userID)
	if err != nil {
		return "", err
	}

	optedIn, err := s.svc.OptedInUsers(ctx)
	if err != nil {
		return "", err
	}
	community := make([]communityUser, 0, len(optedIn))
	for _, id := range optedIn {
		uc, err := s.userContext(ctx, id)
		if err != nil {
			return "", err
		}
		name := fmt.Sprintf("User_%d", id)
		if id == userID {
			name = "You"
		}
		community = append(community, communityUser{Name: name, Applications: uc.Applications})
	}

	combined := struct {
		YourData      *userContext    `json:"your_data"`
		CommunityData []communityUser `json:"community_data"`
	}{YourData: yours, CommunityData: community}

	data, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
