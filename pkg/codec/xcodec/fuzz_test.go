package xcodec

import (
	"testing"
	"unicode/utf8"
)

// FuzzJSON_RoundTrip 验证任意字符串值经 JSON 编解码后保持不变。
func FuzzJSON_RoundTrip(f *testing.F) {
	f.Add("")
	f.Add("hello")
	f.Add("日本語テキスト")
	f.Add("\x00\x01\x02")
	f.Add(`{"nested":"json"}`)

	c := JSON[string]()

	f.Fuzz(func(t *testing.T, s string) {
		data, err := c.Marshal(s)
		if err != nil {
			// encoding/json 拒绝非法 UTF-8 之外的字符串是意外情况
			t.Skipf("marshal rejected input: %v", err)
		}
		out, err := c.Unmarshal(data)
		if err != nil {
			t.Fatalf("unmarshal failed for marshaled data: %v", err)
		}
		// encoding/json 会将非法 UTF-8 替换为 U+FFFD，此时往返不相等是预期行为
		if s != out && utf8.ValidString(s) {
			t.Fatalf("round trip mismatch: %q != %q", s, out)
		}
	})
}

// FuzzCBOR_RoundTrip 验证任意字节切片经 CBOR 编解码后保持不变。
func FuzzCBOR_RoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte("payload"))
	f.Add([]byte{0xff, 0x00, 0x7f})

	c := CBOR[[]byte]()

	f.Fuzz(func(t *testing.T, b []byte) {
		data, err := c.Marshal(b)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		out, err := c.Unmarshal(data)
		if err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if string(b) != string(out) {
			t.Fatalf("round trip mismatch: %x != %x", b, out)
		}
	})
}
