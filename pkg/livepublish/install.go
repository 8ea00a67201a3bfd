package livepublish

import (
	"fmt"
	"io"
	"strings"
)

// bucket provisioning is left to the user: everyone has their own way of managing
// AWS resources
func printInstallInstructions(conf Config, output io.Writer) {
	functionLines := []string{}
	for _, function := range conf.Functions {
		functionLines = append(functionLines, fmt.Sprintf("  - %s", function))
	}

	fmt.Fprintf(output, `1. Create bucket %[1]s in %[2]s (close to you for faster uploads).

2. Allow the functions' execution role to read it. Without s3:ListBucket a missing
   diff shows up as 403 instead of 404, which makes every invocation fail until
   you first publish:

   {"Effect": "Allow", "Action": "s3:GetObject", "Resource": "arn:aws:s3:::%[1]s/%[3]s/*"}
   {"Effect": "Allow", "Action": "s3:ListBucket", "Resource": "arn:aws:s3:::%[1]s", "Condition": {"StringLike": {"s3:prefix": "%[3]s/*"}}}

3. Deploy these functions with live edit enabled:

%[4]s

   environment:
     LIVEEDIT_ENABLE: "1"
     LIVEEDIT_BUCKET: %[1]s
     LIVEEDIT_BUCKET_REGION: %[2]s

   and run your entrypoint through the wrapper, e.g.:

     liveedit exec --interpreter php /var/task/public/index.php

4. Right after deploying, record what was deployed:

     liveedit snapshot

5. Start editing:

     liveedit watch
`,
		conf.Bucket,
		conf.BucketRegion,
		conf.Region,
		strings.Join(functionLines, "\n"))
}
