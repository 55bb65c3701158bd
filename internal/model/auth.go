package model

// LoginForm is the sign-in form.  Login is the admission number for
// students and the email for teachers.
type LoginForm struct {
	Role     string `json:"role" validate:"required,oneof=student teacher"`
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is what /auth/login/{role} answers.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
