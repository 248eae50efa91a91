package api

// LoginRequest представляет запрос на аутентификацию покупателя
type LoginRequest struct {
	Email    string `json:"email"`    // email покупателя
	Password string `json:"password"` // пароль
}

// TokenResponse представляет ответ с токенами доступа
type TokenResponse struct {
	AccessToken  string `json:"access_token"`  // JWT access token
	RefreshToken string `json:"refresh_token"` // refresh token
	TokenType    string `json:"token_type"`    // схема авторизации, обычно "Bearer"
	ExpiresIn    int64  `json:"expires_in"`    // время жизни access token в секундах
}

// CustomerProfile содержит денормализованные данные покупателя.
// Кэшируется рядом с токенами для быстрого отображения статуса
// сессии без дополнительного запроса к серверу.
type CustomerProfile struct {
	ID            string `json:"id"`             // UUID покупателя
	Email         string `json:"email"`          // email
	Name          string `json:"name"`           // отображаемое имя
	EmailVerified bool   `json:"email_verified"` // подтвержден ли email
}

// LoginResponse представляет ответ на успешную аутентификацию
type LoginResponse struct {
	TokenResponse
	Profile CustomerProfile `json:"profile"` // профиль покупателя
}

// RefreshRequest представляет запрос на обновление access token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"` // действующий refresh token
}

// LogoutRequest представляет запрос на завершение сессии на сервере
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"` // отзываемый refresh token
}

// CSRFResponse представляет ответ сервиса anti-forgery токенов
type CSRFResponse struct {
	Token string `json:"csrf_token"` // значение для заголовка X-CSRF-Token
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
