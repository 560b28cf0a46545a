//go:build debug

package buildinfo

// Debug はデバッグビルド（-tags debug）かどうか。
const Debug = true
