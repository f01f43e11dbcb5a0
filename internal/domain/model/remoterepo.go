package model

// RemoteRepo is repository metadata as returned by GitHub.
type RemoteRepo struct {
	ID             int64
	Owner          string
	Name           string
	FullName       string
	Description    string
	HTMLURL        string
	Stars          int
	Language       string
	OwnerAvatarURL string
}

// SearchResult is one page of a repository search.
type SearchResult struct {
	TotalCount        int
	IncompleteResults bool
	Items             []RemoteRepo
}
