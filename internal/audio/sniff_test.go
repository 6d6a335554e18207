package audio

import "testing"

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Container
	}{
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x00, 0x00}, ContainerWebM},
		{"ogg", []byte("OggS\x00\x02"), ContainerOgg},
		{"wav", append([]byte("RIFF\x24\x00\x00\x00"), []byte("WAVE")...), ContainerWAV},
		{"mp3 id3", []byte("ID3\x04\x00\x00"), ContainerMPEG},
		{"mp3 bare sync", []byte{0xFF, 0xFB, 0x90, 0x00}, ContainerMPEG},
		{"mp4", append([]byte{0, 0, 0, 0x18}, []byte("ftypisom")...), ContainerMP4},
		{"unknown", []byte{0x00, 0x01, 0x02}, ContainerUnknown},
		{"empty", nil, ContainerUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sniff(tc.data); got != tc.want {
				t.Errorf("Sniff(%s) = %q, want %q", tc.name, got, tc.want)
			}
		})
	}
}
