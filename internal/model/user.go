package model

// UserRole 由身份服务签发在令牌中，本服务只做鉴权判断
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
