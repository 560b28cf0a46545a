// Package buildinfo はビルドタグで決まる情報。
// デバッグ用の機能（エラー詳細の返却・強制完了エンドポイント）は
// -tags debug でビルドし、かつ APP_DEBUG=true のときだけ有効になる。
package buildinfo

// DebugEnabled は実行時設定とビルドタグの両方が debug を許すときだけ true。
func DebugEnabled(appDebug bool) bool {
	return Debug && appDebug
}
