// exportcookies 从本机 Chrome 配置目录导出 Tistory/Kakao 登录 cookies，
// 写成 tistory-autopost 启动时加载的格式，用于跳过验证码登录。
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/proto"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/xpzouying/tistory-autopost/cookies"
)

// Chrome 时间戳从 1601-01-01 起算，单位微秒
const chromeEpochOffset = 11644473600

var defaultDomains = []string{"tistory.com", "kakao.com"}

const cookieQuery = `
	SELECT name, value, host_key, path, expires_utc, is_secure, is_httponly, same_site
	FROM cookies
	WHERE host_key LIKE ?`

func main() {
	home, _ := os.UserHomeDir()
	var (
		dbPath  = pflag.String("db", filepath.Join(home, ".config", "google-chrome", "Default", "Cookies"), "Chrome cookies 数据库路径")
		outPath = pflag.String("out", cookies.GetCookiesFilePath(), "输出文件")
		domains = pflag.StringSlice("domain", defaultDomains, "导出的域名")
	)
	pflag.Parse()

	db, err := sql.Open("sqlite3", "file:"+*dbPath+"?mode=ro")
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开数据库失败: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	cks, err := exportCookies(db, *domains)
	if err != nil {
		fmt.Fprintf(os.Stderr, "导出失败: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(cks, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "序列化失败: %v\n", err)
		os.Exit(1)
	}
	if err := cookies.NewLoadCookie(*outPath).SaveCookies(out); err != nil {
		fmt.Fprintf(os.Stderr, "写入失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ 导出 %d 个 cookies 到 %s\n", len(cks), *outPath)
}

// exportCookies 读取匹配域名的 cookies。值为空的行是加密存储的，跳过。
func exportCookies(db *sql.DB, domains []string) ([]*proto.NetworkCookie, error) {
	var result []*proto.NetworkCookie
	for _, domain := range domains {
		rows, err := db.Query(cookieQuery, "%"+domain)
		if err != nil {
			return nil, errors.Wrapf(err, "query %s", domain)
		}

		skipped := 0
		for rows.Next() {
			var (
				c                    proto.NetworkCookie
				expiresUTC           int64
				isSecure, isHTTPOnly int64
				sameSite             sql.NullInt64
			)
			if err := rows.Scan(&c.Name, &c.Value, &c.Domain, &c.Path, &expiresUTC, &isSecure, &isHTTPOnly, &sameSite); err != nil {
				rows.Close()
				return nil, errors.Wrap(err, "scan row")
			}
			if c.Value == "" {
				skipped++
				continue
			}
			c.Secure = isSecure == 1
			c.HTTPOnly = isHTTPOnly == 1
			if expiresUTC > 0 {
				c.Expires = proto.TimeSinceEpoch(expiresUTC/1000000 - chromeEpochOffset)
			} else {
				c.Session = true
			}
			c.SameSite = sameSiteOf(sameSite)
			result = append(result, &c)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "iterate rows")
		}
		rows.Close()

		if skipped > 0 {
			fmt.Fprintf(os.Stderr, "%s: %d 个 cookies 已加密，无法导出\n", domain, skipped)
		}
	}
	return result, nil
}

func sameSiteOf(v sql.NullInt64) proto.NetworkCookieSameSite {
	if !v.Valid {
		return ""
	}
	switch v.Int64 {
	case 0:
		return proto.NetworkCookieSameSiteNone
	case 1:
		return proto.NetworkCookieSameSiteLax
	case 2:
		return proto.NetworkCookieSameSiteStrict
	default:
		return ""
	}
}
