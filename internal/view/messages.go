package view

import (
	"errors"
	"fmt"

	"github.com/hitoshi/tablero/internal/model"
)

// DefaultAuthErrorText は対応表に無いエラーに対して表示する文言。
const DefaultAuthErrorText = "Error de autenticación. Intenta nuevamente."

const weakPasswordFormat = "La contraseña debe tener al menos %d caracteres"

var authErrorTexts = map[string]string{
	model.AuthCodeUserNotFound:      "Usuario no encontrado",
	model.AuthCodeWrongPassword:     "Contraseña incorrecta",
	model.AuthCodeEmailAlreadyInUse: "Este email ya está registrado",
	model.AuthCodeWeakPassword:      "La contraseña debe tener al menos 6 caracteres",
	model.AuthCodeInvalidEmail:      "Email inválido",
}

// AuthErrorMessage は認証エラーコードを画面表示用の文言に変換する。
func AuthErrorMessage(code string) string {
	if text, ok := authErrorTexts[code]; ok {
		return text
	}
	return DefaultAuthErrorText
}

// AuthErrorText はerrを画面表示用の文言に変換する。
// weak-passwordは要求された最小文字数を文言に埋め込む。
func AuthErrorText(err error) string {
	var authErr *model.AuthError
	if errors.As(err, &authErr) && authErr.Code == model.AuthCodeWeakPassword && authErr.MinLength > 0 {
		return fmt.Sprintf(weakPasswordFormat, authErr.MinLength)
	}
	return AuthErrorMessage(AuthErrorCode(err))
}

// AuthErrorCode はerrから認証エラーコードを取り出す。AuthErrorでない場合は空文字列。
func AuthErrorCode(err error) string {
	var authErr *model.AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}
