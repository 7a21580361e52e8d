package api

import (
	"time"

	"github.com/appcraft/showcase-service/src/internal/model"
)

// Field exposure is role based and explicit: anonymous callers get the
// public attributes, owners additionally see the review status of their own
// entries, administrators see the review lock as well.

type publicSubmissionView struct {
	ID                  string                    `json:"id"`
	RepositoryURL       string                    `json:"repository_url"`
	Category            model.Category            `json:"category"`
	FrontendEnvironment model.FrontendEnvironment `json:"frontend_environment,omitempty"`
	Language            string                    `json:"language"`
	Libraries           []string                  `json:"libraries"`
	NumberOfStars       int                       `json:"number_of_stars"`
	RepositoryStatus    model.RepositoryStatus    `json:"repository_status"`
	CreatedAt           time.Time                 `json:"created_at"`
}

type ownerSubmissionView struct {
	publicSubmissionView
	Status model.Status `json:"status"`
}

type adminSubmissionView struct {
	ownerSubmissionView
	OwnerID         string     `json:"owner_id"`
	ReviewerID      *string    `json:"reviewer_id,omitempty"`
	ReviewStartedOn *time.Time `json:"review_started_on,omitempty"`
}

func publicView(s model.Submission) publicSubmissionView {
	return publicSubmissionView{
		ID:                  s.ID,
		RepositoryURL:       s.RepositoryURL,
		Category:            s.Category,
		FrontendEnvironment: s.FrontendEnvironment,
		Language:            s.Language,
		Libraries:           s.Libraries,
		NumberOfStars:       s.NumberOfStars,
		RepositoryStatus:    s.RepositoryStatus,
		CreatedAt:           s.CreatedAt,
	}
}

func ownerView(s model.Submission) ownerSubmissionView {
	return ownerSubmissionView{publicSubmissionView: publicView(s), Status: s.Status}
}

func adminView(s model.Submission) adminSubmissionView {
	return adminSubmissionView{
		ownerSubmissionView: ownerView(s),
		OwnerID:             s.OwnerID,
		ReviewerID:          s.ReviewerID,
		ReviewStartedOn:     s.ReviewStartedOn,
	}
}

// viewFor picks the view matching the caller's relationship to the
// submission.
func viewFor(p model.Principal, s model.Submission) any {
	switch {
	case p.IsAdmin:
		return adminView(s)
	case p.Owns(s):
		return ownerView(s)
	default:
		return publicView(s)
	}
}

func viewsFor(p model.Principal, submissions []model.Submission) []any {
	out := make([]any, 0, len(submissions))
	for _, s := range submissions {
		out = append(out, viewFor(p, s))
	}
	return out
}

type userView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	IsAdmin   bool   `json:"is_admin"`
}

func viewUser(u model.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		IsAdmin:   u.IsAdmin,
	}
}
