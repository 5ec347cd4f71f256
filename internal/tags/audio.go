package tags

import "go.senan.xyz/taglib"

// ReadAudioInfo reads the duration and bitrate without decoding the file.
func ReadAudioInfo(path string) (*AudioInfo, error) {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return nil, err
	}
	return &AudioInfo{
		Duration: props.Length,
		Bitrate:  int(props.Bitrate),
	}, nil
}
