package app

import (
	"fmt"
	"io"
	"strings"
)

// Command はtableroバイナリのサブコマンドを表す。
type Command string

const (
	// CommandServe はボードのHTTPサーバーと変更通知の受信を起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの定期削除を起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はtasks/users/sessionsのスキーマを最新にする。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のサーバーの /health を叩く。
	// distrolessイメージにはcurlが無いためDockerのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp はサブコマンドの一覧を表示する。
	CommandHelp Command = "help"
)

type commandInfo struct {
	cmd     Command
	summary string
	// standalone は設定読み込みとDB接続を必要としないことを示す。
	standalone bool
}

// commands はusageの表示順。
var commands = []commandInfo{
	{CommandServe, "タスクボードのHTTPサーバーを起動する（既定）", false},
	{CommandWorker, "期限切れセッションを定期的に削除する", false},
	{CommandMigrate, "データベースのマイグレーションを適用する", false},
	{CommandHealthcheck, "ローカルのサーバーの /health を確認する", true},
	{CommandHelp, "このヘルプを表示する", true},
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が無い場合や未知の名前はCommandServeになる。2番目の戻り値は名前を認識できたかどうか。
func ParseCommand(args []string) (Command, bool) {
	if len(args) == 0 {
		return CommandServe, true
	}

	name := strings.TrimSpace(args[0])
	switch name {
	case "-h", "--help":
		return CommandHelp, true
	}
	for _, info := range commands {
		if string(info.cmd) == name {
			return info.cmd, true
		}
	}
	return CommandServe, false
}

// Standalone はフル初期化（.env・設定・DB）を飛ばして実行できるかを返す。
func (c Command) Standalone() bool {
	for _, info := range commands {
		if info.cmd == c {
			return info.standalone
		}
	}
	return false
}

// WriteUsage はサブコマンドの一覧をwに書き出す。
func WriteUsage(w io.Writer) error {
	var b strings.Builder
	b.WriteString("usage: tablero [command]\n\ncommands:\n")
	for _, info := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", info.cmd, info.summary)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
