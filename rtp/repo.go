package rtp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hajimehoshi/go-mp3"

	"sdego/global"
)

// Repo holds the decoy audio loaded from the media directory, keyed by
// file name without extension. Raw files are mono PCM16LE, mp3 files are
// decoded and downmixed to their left channel.
type Repo struct {
	mu  sync.RWMutex
	pcm map[string][]int16
}

func NewRepo(mediaDir string) *Repo {
	repo := &Repo{pcm: make(map[string][]int16)}
	if mediaDir == "" {
		return repo
	}

	dentries, err := os.ReadDir(mediaDir)
	if err != nil {
		global.LogWarning(global.LTMediaStack, "Cannot read media directory: "+err.Error())
		return repo
	}
	for _, dentry := range dentries {
		if dentry.IsDir() {
			continue
		}
		fullpath := filepath.Join(mediaDir, dentry.Name())
		fmt.Println(fullpath)

		var pcm []int16
		switch strings.ToLower(filepath.Ext(dentry.Name())) {
		case ".raw":
			pcm, err = readPCMRaw(fullpath)
		case ".mp3":
			pcm, err = readMP3(fullpath)
		default:
			continue
		}
		if err != nil {
			global.LogWarning(global.LTMediaStack, fmt.Sprintf("Skipping media file [%s]: %v", dentry.Name(), err))
			continue
		}
		repo.pcm[dropExtension(dentry.Name())] = pcm
	}
	return repo
}

func dropExtension(fn string) string {
	idx := strings.LastIndex(fn, ".")
	if idx == -1 {
		return fn
	}
	return fn[:idx]
}

func readPCMRaw(filename string) ([]int16, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return bytesToInt16s(file), nil
}

func readMP3(filename string) ([]int16, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, err
	}

	// stereo 16-bit LE frames - keep the left channel
	pcm := make([]int16, 0, len(raw)/4)
	for i := 0; i+3 < len(raw); i += 4 {
		pcm = append(pcm, int16(uint16(raw[i])|uint16(raw[i+1])<<8))
	}
	return pcm, nil
}

// bytesToInt16s converts a byte slice into a slice of int16 samples
func bytesToInt16s(data []byte) []int16 {
	int16Data := make([]int16, len(data)/2)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &int16Data); err != nil {
		global.LogWarning(global.LTMediaStack, "Error converting to int16: "+err.Error())
	}
	return int16Data
}

func (repo *Repo) Get(key string) ([]int16, bool) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	pcm, ok := repo.pcm[key]
	return pcm, ok
}

func (repo *Repo) AddOrUpdate(key string, pcm []int16) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.pcm[key] = pcm
}

func (repo *Repo) FilesCount() int {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return len(repo.pcm)
}
