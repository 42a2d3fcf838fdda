package model

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Ctime        int64
	Mtime        int64
}
