package model

// 任务类型
const (
	JobCreateSuggestion = "suggestion.create"
	JobVoteSuggestion   = "suggestion.vote"
	JobVoteRelated      = "related.vote"
	JobImportVideos     = "videos.import"
)

// CreateSuggestionArgs suggestion.create 参数
type CreateSuggestionArgs struct {
	Kind           string `json:"kind"`
	VideoID        string `json:"video_id"`
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// VoteSuggestionArgs suggestion.vote 参数
type VoteSuggestionArgs struct {
	Kind         string `json:"kind"`
	SuggestionID string `json:"suggestion_id"`
	VoterHash    string `json:"voter_hash"`
}

// VoteRelatedArgs related.vote 参数
type VoteRelatedArgs struct {
	VideoID   string `json:"video_id"`
	IsRelated bool   `json:"is_related"`
	VoterHash string `json:"voter_hash"`
}

// ImportVideosArgs videos.import 参数
type ImportVideosArgs struct {
	Videos []*VideoInfo `json:"videos"`
}

// VoteResult 投票任务结果
type VoteResult struct {
	Accepted bool   `json:"accepted"`
	Outcome  string `json:"outcome"`
}

// ImportResult 导入任务结果
type ImportResult struct {
	Imported int `json:"imported"`
}
