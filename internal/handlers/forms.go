package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/reelvault/apiserver/internal/services"
	"github.com/reelvault/apiserver/types"
)

const (
	maxFormBytes       = 1 << 20
	maxMultipartMemory = 8 << 20

	formFieldName            = "name"
	formFieldEmail           = "email"
	formFieldPassword        = "password"
	formFieldConfirmPassword = "confirm_password"
	formFieldDescription     = "description"
	formFieldYear            = "year"
	formFieldGenres          = "genres"
	formFieldRating          = "rating"
	formFieldCoverImage      = "cover_image"
	formFieldCoverFile       = "cover_file"
)

var errInvalidBody = errors.New("invalid request body")

// requestForm is a submitted body regardless of its encoding.
type requestForm struct {
	values url.Values
	files  map[string][]*multipart.FileHeader
}

func (f requestForm) get(keys ...string) string {
	for _, key := range keys {
		if v := f.values.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// parseRequestForm reads an urlencoded, multipart or JSON body. The body is
// capped so oversized submissions fail instead of filling memory.
func parseRequestForm(w http.ResponseWriter, r *http.Request) (requestForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		values, err := decodeJSONValues(r.Body)
		if err != nil {
			return requestForm{}, err
		}
		return requestForm{values: values}, nil
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, services.MaxCoverBytes+maxFormBytes)
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return requestForm{}, errInvalidBody
		}
		return requestForm{values: r.MultipartForm.Value, files: r.MultipartForm.File}, nil
	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return requestForm{}, errInvalidBody
		}
		return requestForm{values: r.PostForm}, nil
	}
}

// decodeJSONValues flattens a JSON object into form values so every
// encoding goes through the same parsing.
func decodeJSONValues(body io.Reader) (url.Values, error) {
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, errInvalidBody
	}

	values := url.Values{}
	for key, value := range raw {
		switch typed := value.(type) {
		case []any:
			for _, item := range typed {
				if s, ok := jsonScalar(item); ok {
					values.Add(key, s)
				}
			}
		default:
			if s, ok := jsonScalar(typed); ok {
				values.Set(key, s)
			}
		}
	}
	return values, nil
}

func jsonScalar(v any) (string, bool) {
	switch typed := v.(type) {
	case string:
		return typed, true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(typed), true
	default:
		return "", false
	}
}

func parseRegisterForm(f requestForm) services.RegisterInput {
	return services.RegisterInput{
		Name:            strings.TrimSpace(f.get(formFieldName)),
		Email:           strings.TrimSpace(f.get(formFieldEmail)),
		Password:        f.get(formFieldPassword),
		ConfirmPassword: f.get(formFieldConfirmPassword, "confirmPassword"),
	}
}

// parseMovieForm builds the movie input from f. Fields that cannot be
// parsed at all are reported in the returned map; everything else is left
// to services.ValidateMovie.
func parseMovieForm(f requestForm) (services.MovieInput, map[string]string) {
	errs := map[string]string{}
	in := services.MovieInput{
		Name:        strings.TrimSpace(f.get(formFieldName)),
		Description: strings.TrimSpace(f.get(formFieldDescription)),
		Genres:      parseGenres(f.values[formFieldGenres]),
		CoverImage:  strings.TrimSpace(f.get(formFieldCoverImage, "coverImage")),
	}

	if raw := strings.TrimSpace(f.get(formFieldYear)); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			errs[formFieldYear] = "must be a whole number"
		} else {
			in.Year = &year
		}
	}

	if raw := strings.TrimSpace(f.get(formFieldRating)); raw != "" {
		rating, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs[formFieldRating] = "must be a number"
		} else {
			in.Rating = &rating
		}
	}

	cover, err := parseCoverFile(f.files)
	if err != nil {
		errs[formFieldCoverFile] = err.Error()
	}
	in.Cover = cover

	return in, errs
}

// parseGenres accepts repeated fields as well as comma separated lists.
func parseGenres(raw []string) []types.Genre {
	genres := make([]types.Genre, 0, len(raw))
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				genres = append(genres, types.Genre(part))
			}
		}
	}
	return genres
}

func parseCoverFile(files map[string][]*multipart.FileHeader) (*services.CoverUpload, error) {
	headers := files[formFieldCoverFile]
	if len(headers) == 0 || headers[0].Size == 0 {
		return nil, nil
	}
	if len(headers) > 1 {
		return nil, errors.New("only one cover file is allowed")
	}

	header := headers[0]
	file, err := header.Open()
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	data, err := readFileLimited(file, services.MaxCoverBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	return &services.CoverUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("must be at most %d MiB", limit>>20)
	}
	return data, nil
}

// movieValues echoes a submitted movie form back to the client.
func movieValues(in services.MovieInput) map[string]any {
	values := map[string]any{
		formFieldName:        in.Name,
		formFieldDescription: in.Description,
		formFieldGenres:      in.Genres,
		formFieldCoverImage:  in.CoverImage,
	}
	if in.Year != nil {
		values[formFieldYear] = *in.Year
	}
	if in.Rating != nil {
		values[formFieldRating] = *in.Rating
	}
	return values
}
