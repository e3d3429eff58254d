package services

import (
	clamd "github.com/dutchcoders/go-clamd"
)

// ScanFile runs a downloaded file through ClamAV. clean is false with a
// signature description when a virus is found.
func ScanFile(path, clamAvURL string) (clean bool, signature string, err error) {
	c := clamd.NewClamd(clamAvURL)
	response, err := c.ScanFile(path)
	if err != nil {
		return false, "", err
	}

	for res := range response {
		if res.Status == clamd.RES_FOUND {
			return false, res.Description, nil
		}
	}
	return true, "", nil
}
