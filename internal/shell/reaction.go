package shell

// ReactToAuthChange は認証状態の遷移に対するナビゲーション先を返す。
// サインイン時に / または /login にいればボードへ、
// サインアウト時にボードにいればログインへ移動する。
// それ以外は移動しない。
func ReactToAuthChange(authenticated bool, currentPath string) (string, bool) {
	if authenticated {
		if currentPath == PathRoot || currentPath == PathLogin {
			return PathBoard, true
		}
		return "", false
	}
	if currentPath == PathBoard {
		return PathLogin, true
	}
	return "", false
}
