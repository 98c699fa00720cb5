package model

type Notebook struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
