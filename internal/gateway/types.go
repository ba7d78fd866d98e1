package gateway

import "time"

// Review is the backend's review row.
type Review struct {
	ReviewID    int64     `json:"review_id"`
	UserID      int64     `json:"user_id"`
	BusinessID  int64     `json:"business_id"`
	Rating      int       `json:"rating"`
	ReviewTitle string    `json:"review_title"`
	ReviewText  string    `json:"review_text"`
	CreatedAt   time.Time `json:"created_at"`
	Reviewer    *Reviewer `json:"reviewer,omitempty"`
}

type Reviewer struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Reply is a supervisor's answer to a review. At most one per review.
type Reply struct {
	ReplyID   int64     `json:"reply_id"`
	ReviewID  int64     `json:"review_id"`
	UserID    int64     `json:"user_id"`
	ReplyText string    `json:"reply_text"`
	CreatedAt time.Time `json:"created_at"`
}

// RatedReview is the aggregate the review-replies endpoints return: a review
// with its optional supervisor reply and the helpfulness vote total.
type RatedReview struct {
	Review     Review `json:"review"`
	Reply      *Reply `json:"reply,omitempty"`
	VotesCount int    `json:"votes_count"`
}

// UserVote marks one review the user found helpful.
type UserVote struct {
	ReviewID int64 `json:"review_id"`
	UserID   int64 `json:"user_id"`
}

type User struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type Business struct {
	BusinessID    int64   `json:"business_id"`
	CategoryID    int64   `json:"category_id"`
	SupervisorID  int64   `json:"supervisor_id,omitempty"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	AverageRating float64 `json:"average_rating"`
}

type Category struct {
	CategoryID  int64  `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
